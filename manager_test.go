package hoard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ManagerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestRegisterAndLookup() {
	m := NewManager()
	c := NewCache[string, int]()

	s.Require().NoError(m.Register("numbers", c))

	got, err := Lookup[string, int](m, "numbers")
	s.Require().NoError(err)
	s.Same(c, got)
}

func (s *ManagerSuite) TestDuplicateAlias() {
	m := NewManager()

	s.Require().NoError(m.Register("numbers", NewCache[string, int]()))

	err := m.Register("numbers", NewCache[string, int]())
	s.Require().Error(err)
	s.Contains(err.Error(), "already registered")
}

func (s *ManagerSuite) TestLookupUnknownAlias() {
	m := NewManager()

	_, err := Lookup[string, int](m, "nope")
	s.Require().Error(err)
	s.Contains(err.Error(), "not registered")
}

func (s *ManagerSuite) TestLookupWrongType() {
	m := NewManager()
	s.Require().NoError(m.Register("numbers", NewCache[string, int]()))

	_, err := Lookup[string, string](m, "numbers")

	var wte *WrongTypeError
	s.Require().ErrorAs(err, &wte)
	s.Equal("cache", wte.Kind)
}

func (s *ManagerSuite) TestRemoveClosesCache() {
	m := NewManager()
	c := NewCache[string, int]()
	s.Require().NoError(m.Register("numbers", c))

	s.Require().NoError(m.Remove("numbers"))

	_, err := Lookup[string, int](m, "numbers")
	s.Require().Error(err)

	_, _, err = c.Get(s.ctx, "a")
	s.Require().ErrorIs(err, ErrClosed, "removal must close the cache")
}

func (s *ManagerSuite) TestRemoveUnknownAlias() {
	m := NewManager()

	err := m.Remove("nope")
	s.Require().Error(err)
	s.Contains(err.Error(), "not registered")
}

func (s *ManagerSuite) TestAliasesSorted() {
	m := NewManager()
	s.Require().NoError(m.Register("zebra", NewCache[string, int]()))
	s.Require().NoError(m.Register("alpha", NewCache[string, int]()))
	s.Require().NoError(m.Register("mango", NewCache[string, int]()))

	s.Equal([]string{"alpha", "mango", "zebra"}, m.Aliases())
}

func (s *ManagerSuite) TestCloseClosesAll() {
	m := NewManager()
	a := NewCache[string, int]()
	b := NewCache[string, string]()
	s.Require().NoError(m.Register("a", a))
	s.Require().NoError(m.Register("b", b))

	s.Require().NoError(m.Close())
	s.Require().NoError(m.Close(), "close must be idempotent")

	_, _, err := a.Get(s.ctx, "x")
	s.Require().ErrorIs(err, ErrClosed)
	_, _, err = b.Get(s.ctx, "x")
	s.Require().ErrorIs(err, ErrClosed)

	s.Require().ErrorIs(m.Register("c", NewCache[string, int]()), ErrClosed)
	_, err = Lookup[string, int](m, "a")
	s.Require().ErrorIs(err, ErrClosed)
}
