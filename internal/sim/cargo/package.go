package cargo

import (
	"fmt"
	"strings"
)

// PackageType selects the wrapped sprite. The numeric value is the sprite index.
type PackageType int

const (
	Box PackageType = iota
	Tiny
	Small
	Medium
	Large
	Sphere
)

var packageNames = []string{"BOX", "TINY", "SMALL", "MEDIUM", "LARGE", "SPHERE"}

func (t PackageType) Valid() bool { return t >= Box && int(t) < len(packageNames) }

func (t PackageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("PackageType(%d)", int(t))
	}
	return packageNames[t]
}

func ParsePackageType(v string) (PackageType, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return Box, nil
	}
	for i, n := range packageNames {
		if n == v {
			return PackageType(i), nil
		}
	}
	return Box, fmt.Errorf("unknown package type %q", v)
}

// Size is the item size class a package reports to containers.
type Size int

const (
	SizeTiny Size = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeHuge
)

var sizeNames = []string{"TINY", "SMALL", "MEDIUM", "LARGE", "HUGE"}

func (s Size) Valid() bool { return s >= SizeTiny && int(s) < len(sizeNames) }

func (s Size) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Size(%d)", int(s))
	}
	return sizeNames[s]
}

func ParseSize(v string) (Size, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return SizeMedium, nil
	}
	for i, n := range sizeNames {
		if n == v {
			return Size(i), nil
		}
	}
	return SizeMedium, fmt.Errorf("unknown size %q", v)
}
