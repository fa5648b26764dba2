package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedOptions параметры заполнения тестовыми данными
type SeedOptions struct {
	Players    int
	Seasons    []int
	Duplicates int
}

type seedPlayer struct {
	first, last, position, positionType, bats, throws string
}

var seedRoster = []seedPlayer{
	{"Shohei", "Ohtani", "TWP", "Two-Way Player", "L", "R"},
	{"Aaron", "Judge", "RF", "Outfielder", "R", "R"},
	{"Mookie", "Betts", "SS", "Infielder", "R", "R"},
	{"Freddie", "Freeman", "1B", "Infielder", "L", "R"},
	{"Gerrit", "Cole", "P", "Pitcher", "R", "R"},
	{"Juan", "Soto", "LF", "Outfielder", "L", "L"},
	{"Corbin", "Burnes", "P", "Pitcher", "R", "R"},
	{"Jose", "Ramirez", "3B", "Infielder", "S", "R"},
}

var seedTeams = []struct {
	id   int
	name string
}{
	{119, "Los Angeles Dodgers"},
	{147, "New York Yankees"},
	{114, "Cleveland Guardians"},
	{110, "Baltimore Orioles"},
}

// SeedPlayers заполняет players детерминированными данными и добавляет
// Duplicates повторов первых записей (тот же ключ, другое имя)
func SeedPlayers(ctx context.Context, db *DB, opts SeedOptions) (int64, error) {
	if opts.Players <= 0 {
		opts.Players = len(seedRoster)
	}
	if len(opts.Seasons) == 0 {
		opts.Seasons = []int{2023, 2024}
	}

	const insert = `
		INSERT INTO players (player_id, season, full_name, first_name, last_name,
			birth_country, height, weight, team_id, team_name,
			primary_position, position_type, bat_side, pitch_hand)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var inserted int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare player insert: %w", err)
		}
		defer stmt.Close()

		type key struct{ playerID, season int }
		var keys []key

		for i := 0; i < opts.Players; i++ {
			p := seedRoster[i%len(seedRoster)]
			team := seedTeams[i%len(seedTeams)]
			playerID := 660000 + i
			fullName := p.first + " " + p.last
			if i >= len(seedRoster) {
				fullName = fmt.Sprintf("%s %s %d", p.first, p.last, i/len(seedRoster)+1)
			}
			for _, season := range opts.Seasons {
				_, err := stmt.ExecContext(ctx, playerID, season, fullName, p.first, p.last,
					"USA", "6' 2\"", 200+i, team.id, team.name,
					p.position, p.positionType, p.bats, p.throws)
				if err != nil {
					return fmt.Errorf("failed to insert player %d/%d: %w", playerID, season, err)
				}
				keys = append(keys, key{playerID, season})
				inserted++
			}
		}

		for i := 0; i < opts.Duplicates && len(keys) > 0; i++ {
			k := keys[i%len(keys)]
			_, err := tx.ExecContext(ctx, `
				INSERT INTO players (player_id, season, full_name, team_id, team_name)
				SELECT player_id, season, full_name || ' (dup)', team_id, team_name
				FROM players WHERE player_id = ? AND season = ? ORDER BY rowid LIMIT 1
			`, k.playerID, k.season)
			if err != nil {
				return fmt.Errorf("failed to insert duplicate %d/%d: %w", k.playerID, k.season, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
