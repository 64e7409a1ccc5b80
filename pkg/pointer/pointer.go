// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer builds pointers to literals for partial-update inputs,
where a nil field means "leave unchanged".
*/
package pointer

// To returns a pointer to the provided value.
func To[T any](v T) *T {
	return &v
}
