package cpe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {

	base := errors.New("boom")

	assert.Equal(t, ClassTransient, ClassOf(Transient(base)))
	assert.Equal(t, ClassPermanent, ClassOf(Permanent(base)))

	// unclassified errors default to transient
	assert.Equal(t, ClassTransient, ClassOf(base))
}

func TestClassOf_wrapped(t *testing.T) {

	err := fmt.Errorf("submit: %w", Permanent(errors.New("refused")))
	assert.Equal(t, ClassPermanent, ClassOf(err))
	assert.True(t, IsPermanent(err))
}

func TestTransient_preservesIdentity(t *testing.T) {

	err := Transient(fmt.Errorf("load: %w", ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsPermanent(err))
}

func TestClassify_nil(t *testing.T) {

	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
}
