package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PaymentApproval is posted by the checkout button once the buyer approves.
type PaymentApproval struct {
	OrderID        string `json:"orderID"`
	SubscriptionID string `json:"subscriptionID"`
}

// PaymentFailure is posted by the checkout button on provider errors.
type PaymentFailure struct {
	Message string `json:"message"`
}

// PaymentCallbackResponse tells the checkout script what the page should do next.
type PaymentCallbackResponse struct {
	PaymentDialogOpen bool           `json:"paymentDialogOpen"`
	Notifications     []Notification `json:"notifications"`
	Redirect          string         `json:"redirect"`
}
