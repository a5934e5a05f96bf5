package deeplink

// PaymentResult последний результат оплаты, полученный через deep link
type PaymentResult struct {
	Status  string  `json:"status"`
	OrderID *string `json:"orderId,omitempty"`
}

// Outcome итог обработки deep link
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Event событие, которое получают подписчики
type Event struct {
	Outcome Outcome `json:"outcome"`
	// OrderID заполнен для OutcomeSuccess
	OrderID string `json:"orderId,omitempty"`
	// Message заполнен для OutcomeFailed
	Message string `json:"message,omitempty"`
}

// Listener получатель итогов оплаты
type Listener interface {
	OnPaymentSuccess(orderID string)
	OnPaymentCancelled()
	OnPaymentFailed(message string)
}

// ListenerFuncs адаптер функций к Listener; nil поля игнорируются
type ListenerFuncs struct {
	Success   func(orderID string)
	Cancelled func()
	Failed    func(message string)
}

func (f ListenerFuncs) OnPaymentSuccess(orderID string) {
	if f.Success != nil {
		f.Success(orderID)
	}
}

func (f ListenerFuncs) OnPaymentCancelled() {
	if f.Cancelled != nil {
		f.Cancelled()
	}
}

func (f ListenerFuncs) OnPaymentFailed(message string) {
	if f.Failed != nil {
		f.Failed(message)
	}
}

func deliver(l Listener, e Event) {
	switch e.Outcome {
	case OutcomeSuccess:
		l.OnPaymentSuccess(e.OrderID)
	case OutcomeCancelled:
		l.OnPaymentCancelled()
	default:
		l.OnPaymentFailed(e.Message)
	}
}
