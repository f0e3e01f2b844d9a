package inventory

// Product is one stock-take line: what the books say is in a slot (InvQty)
// versus what scanning has observed so far (ActQty).
type Product struct {
	ID          int64  `json:"id"`
	Warehouse   string `json:"warehouse"`
	Location    string `json:"location"`
	Model       string `json:"model"`
	Description string `json:"description"`
	InvQty      int    `json:"inv_qty"`
	ActQty      int    `json:"act_qty"`
}

// Row is the bulk-load input tuple. ActQty always starts at zero.
type Row struct {
	Location    string
	Model       string
	Description string
	InvQty      int
}
