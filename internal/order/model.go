package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is ranked by its integer value; later stages compare greater.
type Status int

const (
	PendingPayment Status = iota + 1
	ToBeConfirmed
	Confirmed
	DeliveryInProgress
	Completed
	Cancelled
)

var statusNames = map[Status]string{
	PendingPayment:     "pending_payment",
	ToBeConfirmed:      "to_be_confirmed",
	Confirmed:          "confirmed",
	DeliveryInProgress: "delivery_in_progress",
	Completed:          "completed",
	Cancelled:          "cancelled",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// UserCancellable reports whether a customer may still cancel.
func (s Status) UserCancellable() bool { return s <= ToBeConfirmed }

type PayStatus int

const (
	Unpaid PayStatus = iota
	Paid
	Refunded
)

type PayMethod int

const (
	WeChatPay PayMethod = 1
	Alipay    PayMethod = 2
)

const (
	ReasonUserCancelled  = "user cancelled"
	ReasonPaymentTimeout = "timed out, auto-cancelled"
	ReasonAutoCompleted  = "delivery auto-confirmed"
)

type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	UserID        int64           `json:"user_id"`
	AddressBookID int64           `json:"address_book_id"`
	Status        Status          `json:"status"`
	PayStatus     PayStatus       `json:"pay_status"`
	PayMethod     PayMethod       `json:"pay_method"`
	Amount        decimal.Decimal `json:"amount"`
	Remark        string          `json:"remark,omitempty"`
	Consignee     string          `json:"consignee"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	OrderTime     time.Time       `json:"order_time"`
	CheckoutTime  *time.Time      `json:"checkout_time,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CancelTime    *time.Time      `json:"cancel_time,omitempty"`
}

// Line is the priced snapshot of one cart line. It never changes after the
// order is written.
type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	DishID    int64           `json:"dish_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Flavor    *string         `json:"dish_flavor"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
}

type Detail struct {
	Order
	Lines []Line `json:"order_detail_list"`
}

type SubmitRequest struct {
	AddressBookID int64     `json:"address_book_id"`
	PayMethod     PayMethod `json:"pay_method"`
	Remark        string    `json:"remark"`
}

type SubmitResult struct {
	ID        int64           `json:"id"`
	Number    string          `json:"order_number"`
	Amount    decimal.Decimal `json:"order_amount"`
	OrderTime time.Time       `json:"order_time"`
}

// Patch is a partial update by ID. Zero/nil fields are left unchanged. When
// WhenStatus is set the row is only written while it is still in that status.
type Patch struct {
	ID           int64
	WhenStatus   Status
	Status       Status
	PayStatus    *PayStatus
	CheckoutTime *time.Time
	CancelReason string
	CancelTime   *time.Time
	// ClearCancel drops cancel reason and time; it wins over both fields.
	ClearCancel bool
}

// Filter narrows Count and SumAmount. Zero fields match everything; the
// time range is [Begin, End) on order time.
type Filter struct {
	Status Status
	UserID int64
	Begin  time.Time
	End    time.Time
}

type PageQuery struct {
	Page     int
	PageSize int
	Status   Status
}

type Page struct {
	Total   int      `json:"total"`
	Records []Detail `json:"records"`
}

type Statistics struct {
	ToBeConfirmed      int `json:"to_be_confirmed"`
	Confirmed          int `json:"confirmed"`
	DeliveryInProgress int `json:"delivery_in_progress"`
}
