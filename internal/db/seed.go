package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo profiles and
// swipe history.
//
// Behavior:
//  1. Clears existing data in all four tables.
//  2. Creates 20 profiles (10 male, 10 female) with spread-out ratings and ages.
//  3. Generates ~200 swipes with ~70% rights, forcing a mutual right every
//     3rd pair so the demo data contains matches.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "swipes", "profiles"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		database.Exec("ALTER TABLE messages AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
	case "sqlite":
		database.Exec("DELETE FROM sqlite_sequence WHERE name IN ('messages', 'matches', 'profiles')")
	}

	log.Println("Cleared existing data")

	// --- Seed Profiles (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		gender := GenderMale
		preference := GenderFemale
		if i > 10 {
			gender = GenderFemale
			preference = GenderMale
		}
		if i%7 == 0 {
			preference = PreferenceAll
		}

		// Ages 22..41, ratings clustered around zero.
		age := 22 + (i-1)%20
		profile := Profile{
			Name:               fmt.Sprintf("user%d", i),
			Bio:                fmt.Sprintf("Demo profile %d", i),
			Gender:             gender,
			Preference:         preference,
			BirthDate:          time.Now().AddDate(-age, 0, 0).Truncate(24 * time.Hour),
			PreferYoungerYears: 5,
			PreferOlderYears:   5,
			Rating:             r.Intn(201) - 100,
			Active:             true,
		}
		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Println("Seeded 20 profiles.")

	// --- Seed Swipes (~200) ---
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}

	counter := 0
	for actorID := uint64(1); actorID <= 20; actorID++ {
		for j := 0; j < 12; j++ {
			targetID := uint64(r.Intn(20) + 1)
			if actorID == targetID {
				continue
			}

			var actor, target Profile
			if err := database.First(&actor, actorID).Error; err != nil {
				continue
			}
			if err := database.First(&target, targetID).Error; err != nil {
				continue
			}
			if actor.Gender == target.Gender {
				continue
			}

			// right probability 70%
			direction := DirectionLeft
			if r.Intn(100) < 70 {
				direction = DirectionRight
			}

			// guarantee mutual rights every 3rd pair
			if counter%3 == 0 {
				direction = DirectionRight
				recip := Swipe{ActorID: targetID, TargetID: actorID, Direction: DirectionRight}
				database.Clauses(upsert).Create(&recip)
			}

			swipe := Swipe{ActorID: actorID, TargetID: targetID, Direction: direction}
			if err := database.Clauses(upsert).Create(&swipe).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}

			if direction == DirectionRight {
				var back Swipe
				err := database.
					Where("actor_id = ? AND target_id = ? AND direction = ?", targetID, actorID, DirectionRight).
					Take(&back).Error
				if err == nil {
					low, high := NormalizePair(actorID, targetID)
					match := Match{LowID: low, HighID: high}
					database.Clauses(clause.OnConflict{DoNothing: true}).Create(&match)
				}
			}

			counter++
		}
	}

	return nil
}

// SeedMinimalTestData loads a tiny fixed scenario: one mutual pair with an
// open conversation, one pending right swipe, one pass.
func SeedMinimalTestData(database *gorm.DB) error {
	for _, table := range []string{"messages", "matches", "swipes", "profiles"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	now := time.Now()
	profiles := []Profile{
		{ID: 1, Name: "user1", Gender: GenderMale, Preference: GenderFemale,
			BirthDate: now.AddDate(-30, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
		{ID: 2, Name: "user2", Gender: GenderFemale, Preference: GenderMale,
			BirthDate: now.AddDate(-28, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
		{ID: 3, Name: "user3", Gender: GenderFemale, Preference: PreferenceAll,
			BirthDate: now.AddDate(-32, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
	}
	if err := database.Create(&profiles).Error; err != nil {
		return err
	}

	swipes := []Swipe{
		{ActorID: 1, TargetID: 2, Direction: DirectionRight}, // user1 -> user2 (right)
		{ActorID: 2, TargetID: 1, Direction: DirectionRight}, // user2 -> user1 (right, mutual)
		{ActorID: 3, TargetID: 1, Direction: DirectionRight}, // user3 -> user1 (right, pending)
		{ActorID: 1, TargetID: 3, Direction: DirectionLeft},  // user1 -> user3 (pass)
	}
	if err := database.Create(&swipes).Error; err != nil {
		return err
	}

	match := Match{LowID: 1, HighID: 2, UnreadHigh: 1}
	if err := database.Create(&match).Error; err != nil {
		return err
	}

	message := Message{
		MatchID:     match.ID,
		SenderID:    1,
		RecipientID: 2,
		Text:        "hey, we matched!",
	}
	return database.Create(&message).Error
}
