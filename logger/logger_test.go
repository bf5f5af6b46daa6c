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

package logger_test

import (
	"strings"
	"testing"

	"github.com/jetsetilly/gopsx/logger"
)

func TestLogger(t *testing.T) {
	logger.Clear()
	w := &strings.Builder{}

	logger.Write(w)
	if w.String() != "" {
		t.Fatalf("expected empty log, got %q", w.String())
	}

	logger.Log("test", "this is a test")
	logger.Write(w)
	if w.String() != "test: this is a test\n" {
		t.Fatalf("unexpected log contents: %q", w.String())
	}

	// clear the buffer before continuing, makes comparisons easier to manage
	w.Reset()

	logger.Log("test2", "this is another test")
	logger.Write(w)
	if w.String() != "test: this is a test\ntest2: this is another test\n" {
		t.Fatalf("unexpected log contents: %q", w.String())
	}

	// asking for too many entries in a Tail() should be okay
	w.Reset()
	logger.Tail(w, 100)
	if w.String() != "test: this is a test\ntest2: this is another test\n" {
		t.Fatalf("unexpected tail: %q", w.String())
	}

	// asking for exactly the correct number of entries is okay
	w.Reset()
	logger.Tail(w, 2)
	if w.String() != "test: this is a test\ntest2: this is another test\n" {
		t.Fatalf("unexpected tail: %q", w.String())
	}

	// asking for fewer entries is okay too
	w.Reset()
	logger.Tail(w, 1)
	if w.String() != "test2: this is another test\n" {
		t.Fatalf("unexpected tail: %q", w.String())
	}

	// and no entries
	w.Reset()
	logger.Tail(w, 0)
	if w.String() != "" {
		t.Fatalf("expected empty tail, got %q", w.String())
	}
}
