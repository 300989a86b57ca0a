package court

import "github.com/shopspring/decimal"

// Court is a reservable resource. The catalog is read-only from the booking
// core: courts are provisioned externally and only looked up here.
type Court struct {
	Id        int64
	OrgId     int64
	Name      string
	Surface   string
	BasePrice decimal.Decimal
}
