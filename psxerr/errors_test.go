// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package psxerr_test

import (
	"fmt"
	"testing"

	"github.com/jetsetilly/gopsx/psxerr"
)

const testError = "test error: %s"
const testErrorB = "test error B: %s"

func TestDuplicateErrors(t *testing.T) {
	e := psxerr.Errorf(testError, "foo")
	if e.Error() != "test error: foo" {
		t.Fatalf("unexpected message: %s", e.Error())
	}

	// packing errors of the same type next to each other causes
	// one of them to be dropped
	f := psxerr.Errorf(testError, e)
	if f.Error() != "test error: foo" {
		t.Fatalf("unexpected message: %s", f.Error())
	}
}

func TestIs(t *testing.T) {
	e := psxerr.Errorf(testError, "foo")
	if !psxerr.Is(e, testError) {
		t.Fatalf("expected Is(e, testError) to be true")
	}

	// Has() should fail because we haven't included testErrorB anywhere in the error
	if psxerr.Has(e, testErrorB) {
		t.Fatalf("expected Has(e, testErrorB) to be false")
	}

	// wrapping e in a different pattern keeps both patterns in the chain
	f := psxerr.Errorf(testErrorB, e)
	if psxerr.Is(f, testError) {
		t.Fatalf("expected Is(f, testError) to be false")
	}
	if !psxerr.Is(f, testErrorB) {
		t.Fatalf("expected Is(f, testErrorB) to be true")
	}
	if !psxerr.Has(f, testError) {
		t.Fatalf("expected Has(f, testError) to be true")
	}
	if !psxerr.Has(f, testErrorB) {
		t.Fatalf("expected Has(f, testErrorB) to be true")
	}

	// IsAny should return true for these errors also
	if !psxerr.IsAny(e) || !psxerr.IsAny(f) {
		t.Fatalf("expected IsAny to be true for curated errors")
	}
}

func TestPlainErrors(t *testing.T) {
	// test plain errors that haven't been formatted with our errors package

	e := fmt.Errorf("plain test error")
	if psxerr.IsAny(e) {
		t.Fatalf("expected IsAny(e) to be false for a plain error")
	}

	const testError = "test error: %s"

	if psxerr.Has(e, testError) {
		t.Fatalf("expected Has(e, testError) to be false for a plain error")
	}
}

func TestWrapping(t *testing.T) {
	a := 10
	e := psxerr.Errorf("error: value = %d", a)
	f := psxerr.Errorf("fatal: %v", e)

	if !psxerr.Has(f, "error: value = %d") {
		t.Fatalf("expected Has(f, \"error: value = %%d\") to be true")
	}
	if psxerr.Is(f, "error: value = %d") {
		t.Fatalf("expected Is(f, \"error: value = %%d\") to be false")
	}
	if !psxerr.Has(f, "fatal: %v") {
		t.Fatalf("expected Has(f, \"fatal: %%v\") to be true")
	}
	if !psxerr.Is(f, "fatal: %v") {
		t.Fatalf("expected Is(f, \"fatal: %%v\") to be true")
	}

	if f.Error() != "fatal: error: value = 10" {
		t.Fatalf("unexpected message: %s", f.Error())
	}
}
