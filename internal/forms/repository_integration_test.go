//go:build integration

package forms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
	"github.com/aura-webinar/eventdesk/pkg/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	pg   *containers.PostgresContainer
	repo *Repository
	ctx  context.Context
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.repo = NewRepository(s.pg.Pool)
	s.ctx = context.Background()
}

func (s *RepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *RepositorySuite) create(title string) *models.Form {
	f := &models.Form{Title: title, Fields: []models.FieldSpec{{Name: "name", Label: "Name", Type: models.FieldText, Required: true}}}
	s.Require().NoError(s.repo.Create(s.ctx, f))
	return f
}

func (s *RepositorySuite) TestCreateAndGet() {
	f := s.create("Meetup")
	got, err := s.repo.GetByID(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Equal("Meetup", got.Title)
	s.Equal(f.Fields, got.Fields)
	s.False(got.IsPublished)
}

func (s *RepositorySuite) TestPublishMovesPointer() {
	a, b := s.create("A"), s.create("B")

	_, err := s.repo.Publish(s.ctx, a.ID)
	s.Require().NoError(err)
	got, err := s.repo.Publish(s.ctx, b.ID)
	s.Require().NoError(err)
	s.True(got.IsPublished)

	pub, err := s.repo.GetPublished(s.ctx)
	s.Require().NoError(err)
	s.Equal(b.ID, pub.ID)

	list, err := s.repo.List(s.ctx)
	s.Require().NoError(err)
	published := 0
	for _, f := range list {
		if f.IsPublished {
			published++
		}
	}
	s.Equal(1, published)
}

func (s *RepositorySuite) TestConcurrentPublishLeavesOnePublished() {
	var ids []*models.Form
	for i := 0; i < 8; i++ {
		ids = append(ids, s.create("F"))
	}
	var g errgroup.Group
	for _, f := range ids {
		f := f
		g.Go(func() error {
			_, err := s.repo.Publish(s.ctx, f.ID)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	var n int
	s.Require().NoError(s.pg.Pool.QueryRow(s.ctx, `SELECT COUNT(*) FROM published_form`).Scan(&n))
	s.Equal(1, n)
}

func (s *RepositorySuite) TestUnpublishOnlyClearsOwnPointer() {
	a, b := s.create("A"), s.create("B")
	_, err := s.repo.Publish(s.ctx, a.ID)
	s.Require().NoError(err)

	_, err = s.repo.Unpublish(s.ctx, b.ID)
	s.Require().NoError(err)
	pub, err := s.repo.GetPublished(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(pub)
	s.Equal(a.ID, pub.ID)

	_, err = s.repo.Unpublish(s.ctx, a.ID)
	s.Require().NoError(err)
	pub, err = s.repo.GetPublished(s.ctx)
	s.Require().NoError(err)
	s.Nil(pub)
}

func (s *RepositorySuite) TestDeletePublishedClearsPointer() {
	f := s.create("A")
	_, err := s.repo.Publish(s.ctx, f.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.repo.Delete(s.ctx, f.ID, nil))
	pub, err := s.repo.GetPublished(s.ctx)
	s.Require().NoError(err)
	s.Nil(pub)

	s.ErrorIs(s.repo.Delete(s.ctx, f.ID, nil), apperr.ErrNotFound)
}

func (s *RepositorySuite) TestDeleteWithRegistrationsConflicts() {
	f := s.create("A")
	_, err := s.pg.Pool.Exec(s.ctx, `INSERT INTO registrations (form_id, token) VALUES ($1, 'tok')`, f.ID)
	s.Require().NoError(err)
	s.ErrorIs(s.repo.Delete(s.ctx, f.ID, nil), apperr.ErrConflict)
}
