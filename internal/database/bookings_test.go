package database

import (
	"context"
	"testing"
	"time"

	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func insertBooking(t *testing.T, db *DB, booker int64, start, end time.Time, status models.Status) *models.Booking {
	t.Helper()
	b := &models.Booking{ItemID: itemID, BookerID: booker, Start: start, End: end}
	require.NoError(t, db.InsertBooking(context.Background(), b))
	if status != models.StatusWaiting {
		require.NoError(t, db.UpdateBookingStatus(context.Background(), b.ID, b.Version, status))
		b.Status = status
		b.Version++
	}
	return b
}

func ids(bookings []*models.Booking) []int64 {
	out := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}

func TestInsertAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := &models.Booking{ItemID: itemID, BookerID: bookerID, Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}
	require.NoError(t, db.InsertBooking(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.True(t, got.Start.Equal(b.Start))
	assert.True(t, got.End.Equal(b.End))
	assert.Equal(t, bookerID, got.BookerID)

	_, err = db.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestInsertBookingRejectsInvertedWindow(t *testing.T) {
	db := setupTestDB(t)

	b := &models.Booking{ItemID: itemID, BookerID: bookerID, Start: now, End: now}
	assert.Error(t, db.InsertBooking(context.Background(), b))
}

func TestUpdateBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := insertBooking(t, db, bookerID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusWaiting)

	t.Run("StaleVersion", func(t *testing.T) {
		err := db.UpdateBookingStatus(ctx, b.ID, b.Version+5, models.StatusApproved)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("Approve", func(t *testing.T) {
		require.NoError(t, db.UpdateBookingStatus(ctx, b.ID, b.Version, models.StatusApproved))
		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status)
		assert.Equal(t, b.Version+1, got.Version)
	})

	t.Run("DecidedBookingIsNotUpdated", func(t *testing.T) {
		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		err = db.UpdateBookingStatus(ctx, b.ID, got.Version, models.StatusRejected)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("Missing", func(t *testing.T) {
		assert.ErrorIs(t, db.UpdateBookingStatus(ctx, 999, 1, models.StatusApproved), ErrConcurrentModification)
	})
}

func TestDeleteBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := insertBooking(t, db, bookerID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusWaiting)
	require.NoError(t, db.DeleteBooking(ctx, b.ID))

	_, err := db.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.ErrorIs(t, db.DeleteBooking(ctx, b.ID), ErrBookingNotFound)
}

func TestFindBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := insertBooking(t, db, bookerID, now.Add(-48*time.Hour), now.Add(-24*time.Hour), models.StatusApproved)
	oldRejected := insertBooking(t, db, bookerID, now.Add(-72*time.Hour), now.Add(-60*time.Hour), models.StatusRejected)
	current := insertBooking(t, db, bookerID, now, now.Add(time.Hour), models.StatusApproved)
	endsNow := insertBooking(t, db, bookerID, now.Add(-time.Hour), now, models.StatusApproved)
	futureWaiting := insertBooking(t, db, bookerID, now.Add(24*time.Hour), now.Add(48*time.Hour), models.StatusWaiting)
	futureApproved := insertBooking(t, db, bookerID, now.Add(2*time.Hour), now.Add(3*time.Hour), models.StatusApproved)
	foreign := insertBooking(t, db, otherID, now.Add(5*time.Hour), now.Add(6*time.Hour), models.StatusWaiting)

	find := func(role models.Role, actor int64, state models.State) []int64 {
		t.Helper()
		res, err := db.FindBookings(ctx, models.Filter{
			Role: role, ActorID: actor, State: state, Now: now,
			Page: models.Page{From: 0, Size: 100},
		})
		require.NoError(t, err)
		return ids(res)
	}

	t.Run("BookerAllSortedByEndDesc", func(t *testing.T) {
		assert.Equal(t,
			[]int64{futureWaiting.ID, futureApproved.ID, current.ID, endsNow.ID, past.ID, oldRejected.ID},
			find(models.RoleBooker, bookerID, models.StateAll))
	})

	t.Run("Current", func(t *testing.T) {
		assert.Equal(t, []int64{current.ID}, find(models.RoleBooker, bookerID, models.StateCurrent))
	})

	t.Run("PastIsStrict", func(t *testing.T) {
		assert.Equal(t, []int64{past.ID, oldRejected.ID}, find(models.RoleBooker, bookerID, models.StatePast))
	})

	t.Run("Future", func(t *testing.T) {
		assert.Equal(t, []int64{futureWaiting.ID, futureApproved.ID}, find(models.RoleBooker, bookerID, models.StateFuture))
	})

	t.Run("Waiting", func(t *testing.T) {
		assert.Equal(t, []int64{futureWaiting.ID}, find(models.RoleBooker, bookerID, models.StateWaiting))
	})

	t.Run("OwnerRejected", func(t *testing.T) {
		assert.Equal(t, []int64{oldRejected.ID}, find(models.RoleOwner, ownerID, models.StateRejected))
	})

	t.Run("OwnerSeesAllBookers", func(t *testing.T) {
		got := find(models.RoleOwner, ownerID, models.StateAll)
		assert.Len(t, got, 7)
		assert.Equal(t, futureWaiting.ID, got[0])
		assert.Contains(t, got, foreign.ID)
	})

	t.Run("NoScopeLeak", func(t *testing.T) {
		assert.Empty(t, find(models.RoleOwner, bookerID, models.StateAll))
		assert.Equal(t, []int64{foreign.ID}, find(models.RoleBooker, otherID, models.StateAll))
	})
}

func TestFindBookingsPageMultiplier(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var all []int64
	for i := 0; i < 25; i++ {
		start := now.Add(time.Duration(i) * time.Hour)
		b := insertBooking(t, db, bookerID, start, start.Add(30*time.Minute), models.StatusWaiting)
		all = append([]int64{b.ID}, all...)
	}

	page := func(from, size int) []int64 {
		res, err := db.FindBookings(ctx, models.Filter{
			Role: models.RoleBooker, ActorID: bookerID, State: models.StateAll, Now: now,
			Page: models.Page{From: from, Size: size},
		})
		require.NoError(t, err)
		return ids(res)
	}

	assert.Equal(t, all[:10], page(0, 10))
	// from=15 адресует страницу 1, а не строку 15
	assert.Equal(t, all[10:20], page(15, 10))
	assert.Equal(t, all[20:], page(20, 10))
	assert.Empty(t, page(30, 10))
}

func TestListItemBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := insertBooking(t, db, bookerID, now.Add(-2*time.Hour), now.Add(-time.Hour), models.StatusApproved)
	r := insertBooking(t, db, otherID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusRejected)

	got, err := db.ListItemBookings(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, r.ID}, ids(got))

	got, err = db.ListItemBookings(ctx, itemID+1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindBookingsStateBoundaries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := insertBooking(t, db, bookerID, now.Add(-48*time.Hour), now.Add(-24*time.Hour), models.StatusApproved)
	current := insertBooking(t, db, bookerID, now, now.Add(time.Hour), models.StatusApproved)
	future := insertBooking(t, db, bookerID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusWaiting)
	rejected := insertBooking(t, db, bookerID, now.Add(-time.Hour), now.Add(time.Hour), models.StatusRejected)
	endsNow := insertBooking(t, db, bookerID, now.Add(-time.Hour), now, models.StatusApproved)
	started := insertBooking(t, db, bookerID, now.Add(-time.Minute), now.Add(3*time.Hour), models.StatusWaiting)
	futureApproved := insertBooking(t, db, bookerID, now.Add(4*time.Hour), now.Add(5*time.Hour), models.StatusApproved)
	oldRejected := insertBooking(t, db, bookerID, now.AddDate(-1, 0, 0), now.AddDate(-1, 0, 1), models.StatusRejected)

	all := []int64{past.ID, current.ID, future.ID, rejected.ID, endsNow.ID, started.ID, futureApproved.ID, oldRejected.ID}

	tests := []struct {
		name  string
		role  models.Role
		actor int64
		state models.State
		want  []int64
	}{
		{"AllBooker", models.RoleBooker, bookerID, models.StateAll, all},
		{"AllOwner", models.RoleOwner, ownerID, models.StateAll, all},
		// start == now входит в CURRENT, end == now уже нет
		{"Current", models.RoleBooker, bookerID, models.StateCurrent, []int64{current.ID, rejected.ID, started.ID}},
		{"PastIsStrict", models.RoleBooker, bookerID, models.StatePast, []int64{past.ID, oldRejected.ID}},
		{"Future", models.RoleBooker, bookerID, models.StateFuture, []int64{future.ID, futureApproved.ID}},
		{"WaitingOnlyUpcoming", models.RoleBooker, bookerID, models.StateWaiting, []int64{future.ID}},
		{"RejectedIgnoresTime", models.RoleOwner, ownerID, models.StateRejected, []int64{rejected.ID, oldRejected.ID}},
		{"ForeignBooker", models.RoleBooker, otherID, models.StateAll, nil},
		{"NotOwner", models.RoleOwner, bookerID, models.StateAll, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := db.FindBookings(ctx, models.Filter{
				Role: tt.role, ActorID: tt.actor, State: tt.state, Now: now,
				Page: models.Page{From: 0, Size: 100},
			})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, res)
				return
			}
			assert.ElementsMatch(t, tt.want, ids(res))
		})
	}
}

func TestBookingTimesOutsideNanosecondRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	farFuture := insertBooking(t, db, bookerID,
		time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		models.StatusWaiting)
	farPast := insertBooking(t, db, bookerID,
		time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		models.StatusApproved)

	got, err := db.GetBooking(ctx, farFuture.ID)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(farFuture.Start), "start %s", got.Start)
	assert.True(t, got.End.Equal(farFuture.End), "end %s", got.End)

	got, err = db.GetBooking(ctx, farPast.ID)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(farPast.Start), "start %s", got.Start)
	assert.True(t, got.End.Equal(farPast.End), "end %s", got.End)

	filter := models.Filter{Role: models.RoleBooker, ActorID: bookerID, Now: now, Page: models.Page{Size: 10}}

	filter.State = models.StateFuture
	res, err := db.FindBookings(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []int64{farFuture.ID}, ids(res))

	filter.State = models.StatePast
	res, err = db.FindBookings(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []int64{farPast.ID}, ids(res))
}
