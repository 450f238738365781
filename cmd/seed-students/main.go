package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/database"
	"github.com/stemsi/exstem-ingest/internal/logger"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/profile"
	"github.com/stemsi/exstem-ingest/internal/repository"
	"github.com/stemsi/exstem-ingest/internal/roster"
)

// demoRoster is used when no roster file is given.
var demoRoster = []model.RosterStudent{
	{StudentNumber: "101", FullName: "Ayşe Yılmaz", ClassName: "8A"},
	{StudentNumber: "102", FullName: "Mehmet Kaya", ClassName: "8A"},
	{StudentNumber: "103", FullName: "Zeynep Demir", ClassName: "8A"},
	{StudentNumber: "104", FullName: "Emre Çelik", ClassName: "8A"},
	{StudentNumber: "105", FullName: "Elif Şahin", ClassName: "8A"},
	{StudentNumber: "201", FullName: "Burak Öztürk", ClassName: "8B"},
	{StudentNumber: "202", FullName: "Işıl Aydın", ClassName: "8B"},
	{StudentNumber: "203", FullName: "Gökhan Arslan", ClassName: "8B"},
	{StudentNumber: "204", FullName: "Şule Doğan", ClassName: "8B"},
	{StudentNumber: "205", FullName: "Ümit Kılıç", ClassName: "8B"},
}

func main() {
	rosterPath := flag.String("roster", "", "Roster CSV (student_number, national_id, full_name, class_name)")
	profileDir := flag.String("profiles", "", "Directory of exam profile files to store")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	classRepo := repository.NewClassRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)

	students := demoRoster
	if *rosterPath != "" {
		students, err = roster.ReadFile(*rosterPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *rosterPath).Msg("Failed to read roster")
		}
	}

	fmt.Printf("=== Seeding %d Students ===\n", len(students))

	classes := map[string]int{}
	successCount := 0
	for i := range students {
		s := students[i]
		classID, ok := classes[s.ClassName]
		if !ok {
			c, err := classRepo.Ensure(ctx, s.ClassName)
			if err != nil {
				log.Fatal().Err(err).Str("class", s.ClassName).Msg("Failed to ensure class")
			}
			classID = c.ID
			classes[s.ClassName] = classID
			fmt.Printf("Class %s has ID: %d\n", s.ClassName, classID)
		}

		if err := studentRepo.Create(ctx, &s, classID); err != nil {
			if errors.Is(err, repository.ErrDuplicateNationalID) {
				fmt.Printf("Skipping %s: already enrolled\n", s.FullName)
				continue
			}
			fmt.Printf("Error creating student %s (%s): %v\n", s.FullName, s.StudentNumber, err)
			continue
		}
		successCount++
		if successCount%10 == 0 {
			fmt.Printf("Created %d students...\n", successCount)
		}
	}
	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, len(students))

	if *profileDir == "" {
		return
	}
	profiles, err := profile.LoadDir(*profileDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *profileDir).Msg("Failed to load exam profiles")
	}
	for id, p := range profiles {
		p := p
		if err := examRepo.SaveProfile(ctx, &p); err != nil {
			fmt.Printf("Error storing profile %s: %v\n", id, err)
			continue
		}
		fmt.Printf("Stored profile %s (%d questions)\n", id, len(p.Key))
	}
}
