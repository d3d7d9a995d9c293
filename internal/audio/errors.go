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
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when a system or user name is already registered.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrCapacityExceeded is matched by every *CapacityError.
	ErrCapacityExceeded = errors.New("maximum number of audio objects reached")

	// ErrUnrecognizedCategory marks a malformed category tag. Callers only see it
	// when they hand in a system name or category that was never valid.
	ErrUnrecognizedCategory = errors.New("unrecognized audio category")

	// ErrNotRegistered is returned when deregistering an object the manager does not hold.
	ErrNotRegistered = errors.New("audio object not registered")

	// ErrDisposed is returned by any operation after Dispose.
	ErrDisposed = errors.New("audio manager disposed")

	// ErrNotInitialized is returned by backend factories called before Init.
	ErrNotInitialized = errors.New("audio backend not initialized")

	// ErrReleased is returned by object operations after the native handle is gone.
	ErrReleased = errors.New("audio object released")
)

// CapacityError reports a category that is at its configured maximum.
type CapacityError struct {
	Category Category
	Count    int
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum number of %ss reached (%d) %d", e.Category, e.Count, e.Limit)
}

// Is lets errors.Is(err, ErrCapacityExceeded) match.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}
