package tpch

const (
	CustomerCollection   = "customer"
	OrdersCollection     = "orders"
	CustOrdersCollection = "custorders"
)

// Collections names the three collections a pipeline works on.
type Collections struct {
	Customer   string
	Orders     string
	CustOrders string
}

func DefaultCollections() Collections {
	return Collections{
		Customer:   CustomerCollection,
		Orders:     OrdersCollection,
		CustOrders: CustOrdersCollection,
	}
}

type Customer struct {
	CustKey   int64  `bson:"custkey" json:"custkey"`
	Name      string `bson:"name" json:"name"`
	Address   string `bson:"address" json:"address"`
	NationKey int64  `bson:"nationkey" json:"nationkey"`
}

type Order struct {
	OrderKey   int64   `bson:"orderkey" json:"orderkey"`
	CustKey    int64   `bson:"custkey" json:"custkey"`
	OrderDate  string  `bson:"orderdate" json:"orderdate"`
	TotalPrice float64 `bson:"totalprice" json:"totalprice"`
}

// CustomerOrders is the denormalized document: the customer fields plus
// copies of all of its orders.
type CustomerOrders struct {
	Customer `bson:",inline"`
	Orders   []Order `bson:"orders" json:"orders"`
}

// CustomerSpend is a customer with the summed totalprice of its orders.
type CustomerSpend struct {
	Customer         `bson:",inline"`
	TotalOrderAmount float64 `bson:"totalOrderAmount" json:"totalOrderAmount"`
}

/*
Document structure:

customer: {
  custkey: <int>,
  name: <string>,
  address: <string>,
  nationkey: <int>
}

orders: {
  orderkey: <int>,
  custkey: <int>,
  orderdate: <string>,
  totalprice: <double>
}

custorders: {
  custkey: <int>,
  name: <string>,
  address: <string>,
  nationkey: <int>,
  orders: [
    {
      orderkey: <int>,
      custkey: <int>,
      orderdate: <string>,
      totalprice: <double>
    }
  ]
}

*/
