/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"fmt"
	"strings"
)

// Category identifies which kind of audio object a system name refers to.
type Category byte

const (
	CategoryListener Category = 'L'
	CategorySource   Category = 'S'
	CategoryBuffer   Category = 'B'
)

// SystemPrefix starts every audio system name; the category letter follows it.
const SystemPrefix = "IA"

// Categories lists the known categories in enumeration order.
var Categories = []Category{CategoryListener, CategorySource, CategoryBuffer}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryListener, CategorySource, CategoryBuffer:
		return true
	}
	return false
}

func (c Category) String() string {
	switch c {
	case CategoryListener:
		return "listener"
	case CategorySource:
		return "source"
	case CategoryBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("unknown(%q)", rune(c))
	}
}

// ParseCategory accepts either the category letter or its lowercase name.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "listener", "listeners":
		return CategoryListener, nil
	case "s", "source", "sources":
		return CategorySource, nil
	case "b", "buffer", "buffers":
		return CategoryBuffer, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedCategory, s)
}

// CategoryOf extracts the category encoded in a system name such as "IAS1".
func CategoryOf(systemName string) (Category, error) {
	if len(systemName) < len(SystemPrefix)+1 || !strings.HasPrefix(systemName, SystemPrefix) {
		return 0, fmt.Errorf("%w: system name %q", ErrUnrecognizedCategory, systemName)
	}
	c := Category(systemName[len(SystemPrefix)])
	if !c.Valid() {
		return 0, fmt.Errorf("%w: system name %q", ErrUnrecognizedCategory, systemName)
	}
	return c, nil
}

// SystemName builds the system name for suffix in category c.
func SystemName(c Category, suffix string) string {
	return SystemPrefix + string(rune(c)) + suffix
}
