//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type legacySaveRequest struct {
	Email    string            `json:"email"`
	Workouts map[string]string `json:"workouts"`
	Date     string            `json:"date"`
	Time     string            `json:"time,omitempty"`
}

func (s *IntegrationTestSuite) TestWorkouts_SaveAndRead() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, driver := range s.drivers() {
		s.Run(driver, func() {
			t := s.T()
			email := gofakeit.Email()

			code, body := s.postJSON(ctx, driver, "/save-workout", legacySaveRequest{
				Email:    email,
				Workouts: map[string]string{"Push-ups": workouts.StatusDone, "Squats": workouts.StatusNotDone},
				Date:     "2025-03-10",
				Time:     "07:30",
			}, nil)
			assert.Equal(t, http.StatusCreated, code)
			assert.Equal(t, "created", s.message(body))

			// same payload again: nothing written
			code, body = s.postJSON(ctx, driver, "/save-workout", legacySaveRequest{
				Email:    email,
				Workouts: map[string]string{"Push-ups": workouts.StatusDone, "Squats": workouts.StatusNotDone},
				Date:     "2025-03-10",
				Time:     "09:00",
			}, nil)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, "already recorded", s.message(body))

			code, body = s.postJSON(ctx, driver, "/save-workout", map[string]any{
				"owner":   email,
				"entries": map[string]string{"Squats": workouts.StatusDone, "Plank": workouts.StatusDone},
				"date":    "2025-03-10",
				"time":    "18:45",
			}, nil)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, "updated", s.message(body))

			code, body = s.postJSON(ctx, driver, "/save-workout", legacySaveRequest{
				Email:    email,
				Workouts: map[string]string{"Pull-ups": workouts.StatusNotDone},
				Date:     "2025-03-04",
				Time:     "06:00",
			}, nil)
			require.Equal(t, http.StatusCreated, code)

			code, body = s.get(ctx, driver, "/get-workout", url.Values{"email": {email}, "date": {"2025-03-10"}})
			require.Equal(t, http.StatusOK, code)
			var dayWorkouts []workouts.DayWorkoutResponse
			require.NoError(t, json.Unmarshal(body, &dayWorkouts))
			require.Len(t, dayWorkouts, 1)
			assert.Equal(t, workouts.Entries{
				"Push-ups": workouts.StatusDone,
				"Squats":   workouts.StatusDone,
				"Plank":    workouts.StatusDone,
			}, dayWorkouts[0].Workouts)
			assert.Equal(t, dayWorkouts[0].Workouts, dayWorkouts[0].Entries)
			assert.Equal(t, "18:45", dayWorkouts[0].Time)

			// 2025-03-04 is outside [03-05, 03-11]
			code, body = s.get(ctx, driver, "/recent-workout", url.Values{"owner": {email}, "date": {"2025-03-11"}})
			require.Equal(t, http.StatusOK, code)
			var recent []workouts.RecordResponse
			require.NoError(t, json.Unmarshal(body, &recent))
			require.Len(t, recent, 1)
			assert.Equal(t, "2025-03-10", recent[0].Date)
			assert.Equal(t, email, recent[0].Email)

			code, body = s.get(ctx, driver, "/recent-workout", url.Values{"owner": {email}, "date": {"2025-03-10"}})
			require.Equal(t, http.StatusOK, code)
			require.NoError(t, json.Unmarshal(body, &recent))
			require.Len(t, recent, 2)
			assert.Equal(t, "2025-03-04", recent[0].Date)
			assert.Equal(t, "2025-03-10", recent[1].Date)

			code, _ = s.get(ctx, driver, "/get-workout", url.Values{"email": {email}, "date": {"2025-03-11"}})
			assert.Equal(t, http.StatusNotFound, code)
			code, _ = s.get(ctx, driver, "/recent-workout", url.Values{"email": {email}, "date": {"2024-01-01"}})
			assert.Equal(t, http.StatusNotFound, code)
		})
	}
}

func (s *IntegrationTestSuite) TestWorkouts_Validation() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, driver := range s.drivers() {
		s.Run(driver, func() {
			t := s.T()
			email := gofakeit.Email()

			cases := map[string]any{
				"missing email":  legacySaveRequest{Workouts: map[string]string{"A": workouts.StatusDone}, Date: "2025-03-10"},
				"empty workouts": legacySaveRequest{Email: email, Workouts: map[string]string{}, Date: "2025-03-10"},
				"bad date":       legacySaveRequest{Email: email, Workouts: map[string]string{"A": workouts.StatusDone}, Date: "2025-02-30"},
				"list workouts":  map[string]any{"email": email, "workouts": []string{"A"}, "date": "2025-03-10"},
			}
			for name, payload := range cases {
				code, _ := s.postJSON(ctx, driver, "/save-workout", payload, nil)
				assert.Equal(t, http.StatusBadRequest, code, name)
			}

			code, _ := s.get(ctx, driver, "/get-workout", url.Values{"email": {email}, "date": {"10-03-2025"}})
			assert.Equal(t, http.StatusBadRequest, code)
			code, _ = s.get(ctx, driver, "/recent-workout", url.Values{"date": {"2025-03-10"}})
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func (s *IntegrationTestSuite) TestWorkouts_StoredShape() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	email := gofakeit.Email()
	for _, driver := range s.drivers() {
		code, _ := s.postJSON(ctx, driver, "/save-workout", legacySaveRequest{
			Email:    email,
			Workouts: map[string]string{"Lunges": workouts.StatusDone},
			Date:     "2025-04-01",
			Time:     "12:00",
		}, nil)
		require.Equal(t, http.StatusCreated, code, driver)
	}

	var (
		entriesJSON string
		lastUpdated string
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT entries::text, last_updated_time
		FROM workout_record
		WHERE owner = $1 AND date = '2025-04-01'
	`, email).Scan(&entriesJSON, &lastUpdated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Lunges":"✔️"}`, entriesJSON)
	assert.Equal(t, "12:00", lastUpdated)

	// the mongo document keeps the field names of the original collection
	var doc bson.M
	err = s.mongoDB.Collection("workouts").FindOne(ctx, bson.M{"email": email, "date": "2025-04-01"}).Decode(&doc)
	require.NoError(t, err)
	assert.Equal(t, "12:00", doc["time"])
	storedWorkouts, ok := doc["workouts"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, workouts.StatusDone, storedWorkouts["Lunges"])
}
