package fsevent

import (
	"errors"
	"fmt"
	"strings"
)

// Flags is a bitmask of change-kind tags.
type Flags uint32

// Change-kind bits, in native order.
const (
	FlagNone            Flags = 0x00000000
	FlagMustScanSubDirs Flags = 0x00000001
	FlagUserDropped     Flags = 0x00000002
	FlagKernelDropped   Flags = 0x00000004
	FlagEventIDsWrapped Flags = 0x00000008
	FlagHistoryDone     Flags = 0x00000010
	FlagRootChanged     Flags = 0x00000020
	FlagMount           Flags = 0x00000040
	FlagUnmount         Flags = 0x00000080
	FlagItemCreated     Flags = 0x00000100
	FlagItemRemoved     Flags = 0x00000200
	FlagItemInodeMeta   Flags = 0x00000400
	FlagItemRenamed     Flags = 0x00000800
	FlagItemModified    Flags = 0x00001000
	FlagItemFinderInfo  Flags = 0x00002000
	FlagItemChangeOwner Flags = 0x00004000
	FlagItemXattrMod    Flags = 0x00008000
	FlagItemIsFile      Flags = 0x00010000
	FlagItemIsDir       Flags = 0x00020000
	FlagItemIsSymlink   Flags = 0x00040000
	FlagOwnEvent        Flags = 0x00080000
	FlagItemIsHardlink  Flags = 0x00100000
	FlagItemIsLastLink  Flags = 0x00200000
	FlagItemCloned      Flags = 0x00400000
)

// FlagDropped is set on any event reporting lost notifications.
const FlagDropped = FlagUserDropped | FlagKernelDropped

type flagName struct {
	flag Flags
	name string
}

var flagNames = []flagName{
	{FlagMustScanSubDirs, "must-scan-subdirs"},
	{FlagUserDropped, "user-dropped"},
	{FlagKernelDropped, "kernel-dropped"},
	{FlagEventIDsWrapped, "ids-wrapped"},
	{FlagHistoryDone, "history-done"},
	{FlagRootChanged, "root-changed"},
	{FlagMount, "mount"},
	{FlagUnmount, "unmount"},
	{FlagItemCreated, "created"},
	{FlagItemRemoved, "removed"},
	{FlagItemInodeMeta, "inode-meta-mod"},
	{FlagItemRenamed, "renamed"},
	{FlagItemModified, "modified"},
	{FlagItemFinderInfo, "finder-info-mod"},
	{FlagItemChangeOwner, "change-owner"},
	{FlagItemXattrMod, "xattr-mod"},
	{FlagItemIsFile, "is-file"},
	{FlagItemIsDir, "is-dir"},
	{FlagItemIsSymlink, "is-symlink"},
	{FlagOwnEvent, "own-event"},
	{FlagItemIsHardlink, "is-hardlink"},
	{FlagItemIsLastLink, "is-last-hardlink"},
	{FlagItemCloned, "cloned"},
}

// ErrUnknownFlag is returned when parsing an unrecognised flag name.
var ErrUnknownFlag = errors.New("unknown flag")

// Has reports whether every bit of other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// Names returns the names of the set bits in bit order. Unknown bits are
// rendered as hex so no information is lost.
func (f Flags) Names() []string {
	if f == FlagNone {
		return []string{"none"}
	}
	var names []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return names
}

// String joins Names with "|".
func (f Flags) String() string {
	return strings.Join(f.Names(), "|")
}

// ParseFlags converts flag names back into a mask.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == "none" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == n {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, n)
		}
	}
	return f, nil
}

// FlagNames lists every known change-kind name with its bit, in bit order.
func FlagNames() []struct {
	Flag Flags
	Name string
} {
	out := make([]struct {
		Flag Flags
		Name string
	}, len(flagNames))
	for i, fn := range flagNames {
		out[i].Flag = fn.flag
		out[i].Name = fn.name
	}
	return out
}

// CreateFlags selects which categories of events a stream reports.
type CreateFlags uint32

// Stream creation flags.
const (
	CreateNone            CreateFlags = 0x00000000
	CreateUseCFTypes      CreateFlags = 0x00000001
	CreateNoDefer         CreateFlags = 0x00000002
	CreateWatchRoot       CreateFlags = 0x00000004
	CreateIgnoreSelf      CreateFlags = 0x00000008
	CreateFileEvents      CreateFlags = 0x00000010
	CreateMarkSelf        CreateFlags = 0x00000020
	CreateUseExtendedData CreateFlags = 0x00000040
	CreateFullHistory     CreateFlags = 0x00000080
)

// DefaultMask requests file-level events.
const DefaultMask = CreateFileEvents

var createNames = []struct {
	flag CreateFlags
	name string
}{
	{CreateUseCFTypes, "use-cf-types"},
	{CreateNoDefer, "no-defer"},
	{CreateWatchRoot, "watch-root"},
	{CreateIgnoreSelf, "ignore-self"},
	{CreateFileEvents, "file-events"},
	{CreateMarkSelf, "mark-self"},
	{CreateUseExtendedData, "use-extended-data"},
	{CreateFullHistory, "full-history"},
}

// Has reports whether every bit of other is set in c.
func (c CreateFlags) Has(other CreateFlags) bool {
	return c&other == other
}

// Names returns the names of the set creation flags.
func (c CreateFlags) Names() []string {
	if c == CreateNone {
		return []string{"none"}
	}
	var names []string
	for _, cn := range createNames {
		if c&cn.flag != 0 {
			names = append(names, cn.name)
		}
	}
	return names
}

func (c CreateFlags) String() string {
	return strings.Join(c.Names(), "|")
}

// ParseCreateFlags converts creation flag names into a mask.
func ParseCreateFlags(names []string) (CreateFlags, error) {
	var c CreateFlags
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == "none" {
			continue
		}
		found := false
		for _, cn := range createNames {
			if cn.name == n {
				c |= cn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, n)
		}
	}
	return c, nil
}

// CreateFlagNames lists every known creation flag name in bit order.
func CreateFlagNames() []string {
	names := make([]string, len(createNames))
	for i, cn := range createNames {
		names[i] = cn.name
	}
	return names
}
