package service

// Events pushed to terminals after commit.
const (
	EventStockUpdated    = "stock.updated"
	EventSaleCompleted   = "sale.completed"
	EventInvoiceReceived = "purchase_invoice.received"
)

// Notifier publishes best-effort events. Implementations must not block.
type Notifier interface {
	Publish(event string, data interface{})
}

type NoopNotifier struct{}

func (NoopNotifier) Publish(string, interface{}) {}

// StockChange is the payload of EventStockUpdated.
type StockChange struct {
	ProductID    string `json:"product_id"`
	BranchID     string `json:"branch_id"`
	MovementType string `json:"movement_type"`
	Delta        int    `json:"delta"`
	Quantity     int    `json:"quantity"`
	ReferenceNo  string `json:"reference_no,omitempty"`
}
