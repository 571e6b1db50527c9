package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// energyTradingABI is the surface of the EnergyTrading contract this service
// projects from. Amount fields are base units; timestamps are epoch seconds.
const energyTradingABI = `[
  {
    "type": "function",
    "name": "getEnergyListings",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "owner", "type": "address"},
          {"name": "name", "type": "string"},
          {"name": "costPerUnit", "type": "uint256"},
          {"name": "energyAmount", "type": "uint256"},
          {"name": "fuelType", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "image", "type": "string"},
          {"name": "amountSold", "type": "uint256"},
          {"name": "createdAt", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getEnergyListing",
    "stateMutability": "view",
    "inputs": [{"name": "listingId", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "components": [
          {"name": "owner", "type": "address"},
          {"name": "name", "type": "string"},
          {"name": "costPerUnit", "type": "uint256"},
          {"name": "energyAmount", "type": "uint256"},
          {"name": "fuelType", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "image", "type": "string"},
          {"name": "amountSold", "type": "uint256"},
          {"name": "createdAt", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getEnergyListingsByOwner",
    "stateMutability": "view",
    "inputs": [{"name": "owner", "type": "address"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "owner", "type": "address"},
          {"name": "name", "type": "string"},
          {"name": "costPerUnit", "type": "uint256"},
          {"name": "energyAmount", "type": "uint256"},
          {"name": "fuelType", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "image", "type": "string"},
          {"name": "amountSold", "type": "uint256"},
          {"name": "createdAt", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getPurchaseHistory",
    "stateMutability": "view",
    "inputs": [{"name": "listingId", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "buyer", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "timestamp", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getUserPurchases",
    "stateMutability": "view",
    "inputs": [{"name": "buyer", "type": "address"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "listingId", "type": "uint256"},
          {"name": "amount", "type": "uint256"},
          {"name": "timestamp", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getNumberOfCampaigns",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "createEnergyListing",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "name", "type": "string"},
      {"name": "costPerUnit", "type": "uint256"},
      {"name": "energyAmount", "type": "uint256"},
      {"name": "fuelType", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "image", "type": "string"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "buyEnergy",
    "stateMutability": "payable",
    "inputs": [
      {"name": "listingId", "type": "uint256"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": []
  }
]`

// rawListing mirrors the contract's listing tuple. Field names must match the
// ABI component names for unpacking.
type rawListing struct {
	Owner        common.Address
	Name         string
	CostPerUnit  *big.Int
	EnergyAmount *big.Int
	FuelType     string
	Description  string
	Image        string
	AmountSold   *big.Int
	CreatedAt    *big.Int
}

// rawPurchase mirrors the contract's per-listing purchase tuple.
type rawPurchase struct {
	Buyer     common.Address
	Amount    *big.Int
	Timestamp *big.Int
}

// rawUserPurchase mirrors the contract's per-buyer purchase tuple.
type rawUserPurchase struct {
	ListingId *big.Int
	Amount    *big.Int
	Timestamp *big.Int
}
