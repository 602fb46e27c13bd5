package checkout

import (
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
)

// Field names a single input of the checkout form.
type Field string

const (
	FieldFirstName        Field = "firstName"
	FieldLastName         Field = "lastName"
	FieldEmail            Field = "email"
	FieldPhone            Field = "phone"
	FieldAddress          Field = "address"
	FieldCity             Field = "city"
	FieldPostalCode       Field = "postalCode"
	FieldPaymentMethod    Field = "paymentMethod"
	FieldMobileMoneyPhone Field = "mobileMoneyPhone"
)

var shippingRequired = []struct {
	field   Field
	message string
}{
	{FieldFirstName, "First name is required"},
	{FieldLastName, "Last name is required"},
	{FieldEmail, "Email is required"},
	{FieldPhone, "Phone is required"},
	{FieldAddress, "Address is required"},
	{FieldCity, "City is required"},
}

const (
	msgMobileMoneyPhone  = "M-Pesa phone number is required"
	msgMethodUnavailable = "This payment method is not available yet"
)

// FieldErrors maps a field to the message shown next to it.
type FieldErrors map[Field]string

func (e FieldErrors) clone() FieldErrors {
	if len(e) == 0 {
		return FieldErrors{}
	}
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

type Form struct {
	Customer         domain.Customer      `json:"customer"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	MobileMoneyPhone string               `json:"mobile_money_phone"`
}

func (f *Form) set(field Field, value string) error {
	switch field {
	case FieldFirstName:
		f.Customer.FirstName = value
	case FieldLastName:
		f.Customer.LastName = value
	case FieldEmail:
		f.Customer.Email = value
	case FieldPhone:
		f.Customer.Phone = value
	case FieldAddress:
		f.Customer.Address = value
	case FieldCity:
		f.Customer.City = value
	case FieldPostalCode:
		f.Customer.PostalCode = value
	case FieldPaymentMethod:
		f.PaymentMethod = domain.PaymentMethod(value)
	case FieldMobileMoneyPhone:
		f.MobileMoneyPhone = value
	default:
		return ErrUnknownField
	}
	return nil
}

// Value returns the current value of field, or "" for unknown fields.
func (f Form) Value(field Field) string {
	switch field {
	case FieldFirstName:
		return f.Customer.FirstName
	case FieldLastName:
		return f.Customer.LastName
	case FieldEmail:
		return f.Customer.Email
	case FieldPhone:
		return f.Customer.Phone
	case FieldAddress:
		return f.Customer.Address
	case FieldCity:
		return f.Customer.City
	case FieldPostalCode:
		return f.Customer.PostalCode
	case FieldPaymentMethod:
		return string(f.PaymentMethod)
	case FieldMobileMoneyPhone:
		return f.MobileMoneyPhone
	}
	return ""
}

func (f Form) shippingErrors() FieldErrors {
	errs := FieldErrors{}
	for _, req := range shippingRequired {
		if strings.TrimSpace(f.Value(req.field)) == "" {
			errs[req.field] = req.message
		}
	}
	return errs
}

func (f Form) paymentErrors() FieldErrors {
	errs := FieldErrors{}
	switch f.PaymentMethod {
	case domain.PaymentMethodMobileMoney:
		if strings.TrimSpace(f.MobileMoneyPhone) == "" {
			errs[FieldMobileMoneyPhone] = msgMobileMoneyPhone
		}
	default:
		errs[FieldPaymentMethod] = msgMethodUnavailable
	}
	return errs
}
