package event

import (
	"time"

	"github.com/atelier-imprim/prodflow/workflow"
)

//LineChange is the payload of orderEtapeChanged and orderStatusChanged
type LineChange struct {
	OrderID        string    `json:"orderId"`
	OrderProductID string    `json:"orderProductId"`
	ProductID      string    `json:"productId"`
	OrderNumber    string    `json:"orderNumber"`
	ProductName    string    `json:"productName"`
	Client         string    `json:"client"`
	FromEtape      string    `json:"fromEtape,omitempty"`
	ToEtape        string    `json:"toEtape,omitempty"`
	FromStatus     string    `json:"fromStatus,omitempty"`
	ToStatus       string    `json:"toStatus,omitempty"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

//LineSnapshot is the payload of orderCreated/orderUpdated/orderDeleted,
//full line for client cache refresh
type LineSnapshot struct {
	Line      workflow.OrderLine `json:"line"`
	Timestamp time.Time          `json:"timestamp"`
}

//Stats is the advisory payload of statsChanged
type Stats struct {
	Timestamp time.Time `json:"timestamp"`
}

//Overdue is the payload of reminderOverdue
type Overdue struct {
	Line           workflow.OrderLine `json:"line"`
	OverdueMinutes int                `json:"overdueMinutes"`
	Timestamp      time.Time          `json:"timestamp"`
}
