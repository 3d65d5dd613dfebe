package uuid_test

import (
	"errors"
	"testing"

	"github.com/freekieb7/webapi/uuid"
)

func TestUUIDConversion(t *testing.T) {
	id := uuid.NewV4()
	idStr := id.String()

	idParsed, err := uuid.Parse(idStr)
	if err != nil {
		t.Fatal(err)
	}

	if id != idParsed {
		t.Error("parse failed")
	}
	if id.Version() != 4 {
		t.Errorf("expected version 4, got %d", id.Version())
	}

	urn, err := uuid.Parse("urn:uuid:" + idStr)
	if err != nil {
		t.Fatal(err)
	}
	if urn != id {
		t.Error("urn parse failed")
	}
}

func TestUUIDParseInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"not-a-uuid",
		"zzzzzzzz-zzzz-4zzz-8zzz-zzzzzzzzzzzz",
		"123e4567e89b-12d3-a456-426614174000x",
	} {
		if _, err := uuid.Parse(s); !errors.Is(err, uuid.ErrInvalidFormat) {
			t.Errorf("%q: expected ErrInvalidFormat, got %v", s, err)
		}
	}
}

func BenchmarkUUIDToString(b *testing.B) {
	for i := 0; i < b.N; i++ {
		id := uuid.NewV4()
		idStr := id.String()
		uuid.Parse(idStr)
	}
}
