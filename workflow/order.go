package workflow

import (
	"time"
)

//DefaultWorkMinutes is used when a line has no estimate
const DefaultWorkMinutes = 120

//OrderLine represents one product entry of a customer order,
//tracked independently through the production flow
type OrderLine struct {
	ID                string     `json:"id" db:"id"`
	OrderID           string     `json:"order_id" db:"order_id"`
	OrderNumber       string     `json:"order_number" db:"order_number"`
	ProductID         string     `json:"product_id" db:"product_id"`
	ProductName       string     `json:"product_name" db:"product_name"`
	Client            string     `json:"client" db:"client"`
	Status            Status     `json:"status" db:"status"`
	Stage             Stage      `json:"stage" db:"stage"`
	Workshop          Workshop   `json:"workshop" db:"workshop"`
	Deadline          *time.Time `json:"deadline" db:"deadline"`
	EstimatedWorkMins *int       `json:"estimated_work_minutes" db:"estimated_work_minutes"`
	PrintAgent        string     `json:"print_agent" db:"print_agent"`
	Designer          string     `json:"designer" db:"designer"`
	HasFinishingItems bool       `json:"has_finishing_items" db:"has_finishing_items"`
	Express           Express    `json:"express" db:"express"`
	Note              string     `json:"note" db:"note"`
	Version           int        `json:"version" db:"version"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	StateDate         time.Time  `json:"state_date" db:"state_date"`
}

//WorkMinutes returns the estimate or the default when absent
func (o OrderLine) WorkMinutes() int {
	if o.EstimatedWorkMins == nil {
		return DefaultWorkMinutes
	}
	return *o.EstimatedWorkMins
}

//OnSite reports if the client waits on site (no deadline pressure)
func (o OrderLine) OnSite() bool {
	return o.Deadline == nil
}

//TransitionRequest is a requested change of a line, stage and/or status.
//Nil field means no change requested.
type TransitionRequest struct {
	Stage  *Stage  `json:"stage"`
	Status *Status `json:"status"`
	//Issue is the free text required when status goes to technical_problem,
	//appended to the line note
	Issue string `json:"issue"`
}
