// Package connectivity derives ground-truth facts from a scene snapshot. It is
// the only place that interprets port ids; every other package reasons over
// the booleans and device lists it returns.
package connectivity

import "regexp"

// Role is what a port does in the assembly, derived from its id.
type Role string

const (
	RoleCentralUSB       Role = "central-usb"
	RoleCentralHDMI      Role = "central-hdmi"
	RolePowerStripOutlet Role = "power-strip-outlet"
	RoleWallOutlet       Role = "wall-outlet"
	RoleAdapterUSB       Role = "adapter-usb"
	RoleAdapterHDMI      Role = "adapter-hdmi"
)

// RolePattern pairs a role with the port id pattern that identifies it.
type RolePattern struct {
	Role    Role
	Pattern *regexp.Regexp
}

var roleTable = []RolePattern{
	{RoleCentralUSB, regexp.MustCompile(`(?i)^usb\d+$`)},
	{RoleCentralHDMI, regexp.MustCompile(`(?i)^hdmi\d+$`)},
	{RolePowerStripOutlet, regexp.MustCompile(`^power-strip-`)},
	{RoleWallOutlet, regexp.MustCompile(`(?i)wall`)},
	{RoleAdapterUSB, regexp.MustCompile(`(?i)^(adapter|usb-adapter)-port\d+$`)},
	{RoleAdapterHDMI, regexp.MustCompile(`(?i)^(adapter|usb-adapter)-hdmi\d+$`)},
}

// Roles returns the role table in classification order.
func Roles() []RolePattern {
	out := make([]RolePattern, len(roleTable))
	copy(out, roleTable)
	return out
}

// Is reports whether portID plays role r.
func Is(r Role, portID string) bool {
	for _, rp := range roleTable {
		if rp.Role == r {
			return rp.Pattern.MatchString(portID)
		}
	}
	return false
}

// Classify returns the first role portID matches.
func Classify(portID string) (Role, bool) {
	for _, rp := range roleTable {
		if rp.Pattern.MatchString(portID) {
			return rp.Role, true
		}
	}
	return "", false
}

// dataRoles are the port roles a device can reach the central unit through.
var dataRoles = []Role{RoleCentralUSB, RoleAdapterUSB, RoleAdapterHDMI, RoleCentralHDMI}

func isAny(portID string, roles ...Role) bool {
	for _, r := range roles {
		if Is(r, portID) {
			return true
		}
	}
	return false
}
