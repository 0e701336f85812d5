//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository/postgres"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Store Suite")
}

func setupPostgres() (*postgres.Store, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tour_tracker_test"),
		tcpostgres.WithUsername("tour"),
		tcpostgres.WithPassword("tour"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}
	if _, err := postgres.Migrate(connStr); err != nil {
		return nil, nil, err
	}

	store, err := postgres.Open(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		_ = container.Terminate(ctx)
	}
	return store, cleanup, nil
}

var _ = Describe("Store", func() {
	var (
		store   *postgres.Store
		cleanup func()
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		store, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("users", func() {
		It("rejects a duplicate username", func() {
			Expect(store.InsertUser(ctx, &model.User{Email: "a@x.com", Username: "alice", PasswordHash: "h"})).To(Succeed())

			err := store.InsertUser(ctx, &model.User{Email: "b@x.com", Username: "alice", PasswordHash: "h"})
			Expect(err).To(MatchError(apperror.ErrConflict))
		})

		It("finds a user by email regardless of case", func() {
			user := &model.User{Email: "a@x.com", Username: "alice", PasswordHash: "h"}
			Expect(store.InsertUser(ctx, user)).To(Succeed())

			found, err := store.FindUserByIdentifier(ctx, "A@X.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(user.ID))
		})
	})

	Describe("catalog", func() {
		It("deduplicates concerts by calendar day", func() {
			city := &model.City{Name: "Austin", Country: "USA"}
			Expect(store.InsertCity(ctx, city)).To(Succeed())
			venue := &model.Venue{Name: "Moody Center", CityID: city.ID}
			Expect(store.InsertVenue(ctx, venue)).To(Succeed())
			tour := &model.Tour{Name: "X Tour", ArtistID: 1, StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			Expect(store.InsertTour(ctx, tour)).To(Succeed())

			first := &model.Concert{TourID: tour.ID, VenueID: venue.ID, Date: time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)}
			Expect(store.InsertConcert(ctx, first)).To(Succeed())

			again := &model.Concert{TourID: tour.ID, VenueID: venue.ID, Date: time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)}
			Expect(store.InsertConcert(ctx, again)).To(MatchError(apperror.ErrConflict))

			found, err := store.FindConcert(ctx, again.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(first.ID))
		})
	})
})
