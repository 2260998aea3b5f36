package shelly

// Identity is the (type, id) pair that names a physical device.
type Identity struct {
	Type string
	ID   string
}

// IdentityOf returns the identity of a device.
func IdentityOf(d Device) Identity {
	return Identity{Type: d.Type(), ID: d.ID()}
}

// Key renders the identity as "type#id".
func (i Identity) Key() string {
	return i.Type + "#" + i.ID
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return i.Key()
}
