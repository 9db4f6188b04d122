package calendar

// Category is a fixed display category.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TextColor   string `json:"textColor"`
	BgColor     string `json:"bgColor"`
	BorderColor string `json:"borderColor"`
}

const (
	CategoryBooking     = "booking"
	CategoryDelivery    = "delivery"
	CategoryPickup      = "pickup"
	CategorySwap        = "swap"
	CategoryMaintenance = "maintenance"
	CategoryWash        = "wash"
)

var categories = []Category{
	{ID: CategoryBooking, Name: "Booking", TextColor: "#1e40af", BgColor: "#dbeafe", BorderColor: "#93c5fd"},
	{ID: CategoryDelivery, Name: "Delivery", TextColor: "#166534", BgColor: "#dcfce7", BorderColor: "#86efac"},
	{ID: CategoryPickup, Name: "Pickup", TextColor: "#9a3412", BgColor: "#ffedd5", BorderColor: "#fdba74"},
	{ID: CategorySwap, Name: "Swap", TextColor: "#6b21a8", BgColor: "#f3e8ff", BorderColor: "#d8b4fe"},
	{ID: CategoryMaintenance, Name: "Maintenance", TextColor: "#991b1b", BgColor: "#fee2e2", BorderColor: "#fca5a5"},
	{ID: CategoryWash, Name: "Wash", TextColor: "#155e75", BgColor: "#cffafe", BorderColor: "#67e8f9"},
}

// neutralCategory styles events whose category id is unknown.
var neutralCategory = Category{ID: "", Name: "Other", TextColor: "#374151", BgColor: "#f3f4f6", BorderColor: "#d1d5db"}

// Categories returns a copy of the palette.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryFor never fails; unknown ids get the neutral style.
func CategoryFor(id string) Category {
	for _, c := range categories {
		if c.ID == id {
			return c
		}
	}
	return neutralCategory
}

func KnownCategory(id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// bookingCategory maps a booking status onto a display category.
func bookingCategory(status string) string {
	switch status {
	case "active":
		return CategoryBooking
	case "pending":
		return CategoryDelivery
	case "completed":
		return CategoryPickup
	default:
		return CategoryBooking
	}
}
