package enums

// CartPath distinguishes client-held guest carts from persisted server carts.
type CartPath string

const (
	CartPathGuest  CartPath = "guest"
	CartPathServer CartPath = "server"
)

func (p CartPath) String() string {
	return string(p)
}
