//go:build integration

package registrations

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/eventdesk/internal/codes"
	"github.com/aura-webinar/eventdesk/internal/forms"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
	"github.com/aura-webinar/eventdesk/pkg/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	forms *forms.Repository
	repo  *Repository
	codes *codes.Service
	ctx   context.Context
	form  *models.Form
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.forms = forms.NewRepository(s.pg.Pool)
	s.repo = NewRepository(s.pg.Pool)
	s.ctx = context.Background()
	var err error
	s.codes, err = codes.NewService("http://localhost:8080/verify", 0)
	s.Require().NoError(err)
}

func (s *RepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
	s.form = &models.Form{Fields: []models.FieldSpec{{Name: "name", Type: models.FieldText}}}
	s.Require().NoError(s.forms.Create(s.ctx, s.form))
	_, err := s.forms.Publish(s.ctx, s.form.ID)
	s.Require().NoError(err)
}

func (s *RepositorySuite) insert(name string) *models.Registration {
	token, err := s.codes.Mint()
	s.Require().NoError(err)
	reg := &models.Registration{FormID: s.form.ID, Token: token, Answers: map[string]string{"name": name}}
	s.Require().NoError(s.repo.Insert(s.ctx, reg, time.Time{}))
	return reg
}

func (s *RepositorySuite) TestInsertAndLookup() {
	reg := s.insert("Ada")

	byID, err := s.repo.GetByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, byID.Status)
	s.Equal("Ada", byID.Answers["name"])

	byToken, err := s.repo.FindByToken(s.ctx, reg.Token)
	s.Require().NoError(err)
	s.Equal(reg.ID, byToken.ID)
}

func (s *RepositorySuite) TestInsertRequiresPublishedForm() {
	_, err := s.forms.Unpublish(s.ctx, s.form.ID)
	s.Require().NoError(err)

	token, err := s.codes.Mint()
	s.Require().NoError(err)
	err = s.repo.Insert(s.ctx, &models.Registration{FormID: s.form.ID, Token: token, Answers: map[string]string{}}, time.Time{})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *RepositorySuite) TestDuplicateTokenIsReported() {
	reg := s.insert("Ada")
	err := s.repo.Insert(s.ctx, &models.Registration{FormID: s.form.ID, Token: reg.Token, Answers: map[string]string{}}, time.Time{})
	s.ErrorIs(err, ErrTokenTaken)
}

func (s *RepositorySuite) TestListByFormInCreationOrder() {
	var want []string
	for _, name := range []string{"Ada", "Grace", "Linus"} {
		want = append(want, s.insert(name).ID.String())
	}
	list, err := s.repo.ListByForm(s.ctx, s.form.ID)
	s.Require().NoError(err)
	var got []string
	for _, r := range list {
		got = append(got, r.ID.String())
	}
	s.Equal(want, got)
}

func (s *RepositorySuite) TestCheckInOnce() {
	reg := s.insert("Ada")
	first := time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)

	got, ok, err := s.repo.CheckIn(s.ctx, reg.Token, first)
	s.Require().NoError(err)
	s.True(ok)
	s.True(first.Equal(*got.CheckedInAt))

	got, ok, err = s.repo.CheckIn(s.ctx, reg.Token, first.Add(time.Hour))
	s.Require().NoError(err)
	s.False(ok)
	s.True(first.Equal(*got.CheckedInAt))

	stats, err := s.repo.Stats(s.ctx, s.form.ID)
	s.Require().NoError(err)
	s.Equal(1, stats.Total)
	s.Equal(1, stats.CheckedIn)

	_, _, err = s.repo.CheckIn(s.ctx, "missing", first)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *RepositorySuite) TestConcurrentCheckInSucceedsOnce() {
	reg := s.insert("Ada")
	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, ok, err := s.repo.CheckIn(s.ctx, reg.Token, time.Now())
			if ok {
				wins.Add(1)
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), wins.Load())
}

func (s *RepositorySuite) TestSetCodeObjectKey() {
	reg := s.insert("Ada")
	s.Require().NoError(s.repo.SetCodeObjectKey(s.ctx, reg.ID, "codes/a.png"))
	got, err := s.repo.GetByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.CodeObjectKey)
	s.Equal("codes/a.png", *got.CodeObjectKey)
}

func (s *RepositorySuite) TestInsertRejectsStaleFormVersion() {
	snapshot, err := s.forms.GetByID(s.ctx, s.form.ID)
	s.Require().NoError(err)
	_, err = s.forms.Update(s.ctx, s.form.ID, "Edited", append(snapshot.Fields, models.FieldSpec{Name: "email", Type: models.FieldEmail, Required: true}))
	s.Require().NoError(err)

	token, err := s.codes.Mint()
	s.Require().NoError(err)
	err = s.repo.Insert(s.ctx, &models.Registration{FormID: s.form.ID, Token: token, Answers: map[string]string{}}, snapshot.UpdatedAt)
	s.ErrorIs(err, ErrFormChanged)

	current, err := s.forms.GetByID(s.ctx, s.form.ID)
	s.Require().NoError(err)
	s.NoError(s.repo.Insert(s.ctx, &models.Registration{FormID: s.form.ID, Token: token, Answers: map[string]string{}}, current.UpdatedAt))
}
