package entities

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusUnknown PaymentStatus = "unknown"
)

type PaymentVerification struct {
	Reference string
	Status    PaymentStatus
}

func (p PaymentVerification) Paid() bool {
	return p.Status == PaymentStatusPaid
}
