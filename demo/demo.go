package demo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/sqlforge"
)

type Person struct {
	Name     string `db:"name"`
	Height   int    `db:"height_cm"`
	HomeTown string `db:"home_town"`
}

type Place struct {
	Name       string `db:"town_name"`
	Population int    `db:"population"`
}

const schema = `
	CREATE TABLE people (
		name text,
		height_cm integer,
		home_town text
	);
	CREATE TABLE location (
		town_name text,
		population integer
	);`

func example() error {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	drv := sqlforge.NewDBDriver(sqldb, sqlforge.Capabilities{Style: sqlforge.Question})
	engine := sqlforge.NewEngine()
	ctx := context.Background()

	// Create the tables.
	_, err = engine.Execute(ctx, drv, sqlforge.Request{
		Mode:   sqlforge.Script,
		Script: schema,
	})
	if err != nil {
		return err
	}

	insertPerson := engine.MustCompile(`
		INSERT INTO people (name, height_cm, home_town)
		VALUES (:name, :height, :town)`,
		sqlforge.SQLite, nil,
	)
	insertPlace := engine.MustCompile(`
		INSERT INTO location (town_name, population)
		VALUES (:name, :population)`,
		sqlforge.SQLite, nil,
	)
	tallerThan := engine.MustCompile(`
		SELECT name, height_cm, home_town
		FROM people
		WHERE height_cm > :height`,
		sqlforge.SQLite, nil,
	)
	tallerCity := engine.MustCompile(`
		SELECT l.town_name, l.population
		FROM people AS p, location AS l
		WHERE p.home_town = l.town_name
		AND p.height_cm > :height`,
		sqlforge.SQLite, nil,
	)

	var people = []Person{{"Jim", 150, "Kabul"}, {"Saba", 162, "Berlin"}, {"Dave", 169, "Brasília"}, {"Sophie", 174, "Berlin"}, {"Kiri", 168, "Cape Town"}}
	var places = []Place{{"Kabul", 13000000}, {"Berlin", 3677472}, {"Brasília", 3039444}, {"Cape Town", 4710000}}

	// Insert the people in one batch and the places one by one.
	personSets := make([]any, len(people))
	for i, person := range people {
		personSets[i] = sqlforge.M{"name": person.Name, "height": person.Height, "town": person.HomeTown}
	}
	_, err = engine.Execute(ctx, drv, sqlforge.Request{
		Stmt:    insertPerson,
		Mode:    sqlforge.Many,
		ArgSets: personSets,
	})
	if err != nil {
		return err
	}
	for _, place := range places {
		_, err := engine.Execute(ctx, drv, sqlforge.Request{
			Stmt: insertPlace,
			Args: sqlforge.M{"name": place.Name, "population": place.Population},
		})
		if err != nil {
			return err
		}
	}

	// Find people taller than Jim.
	jim := people[0]
	res, err := engine.Execute(ctx, drv, sqlforge.Request{
		Stmt: tallerThan,
		Args: sqlforge.M{"height": jim.Height},
	})
	if err != nil {
		return err
	}
	tallPeople := []Person{}
	err = res.ScanAll(&tallPeople)
	if err != nil {
		return err
	}
	for _, p := range tallPeople {
		fmt.Printf("%s is taller than %s.\n", p.Name, jim.Name)
	}

	// Find cities with people taller than Jim.
	res, err = engine.Execute(ctx, drv, sqlforge.Request{
		Stmt: tallerCity,
		Args: sqlforge.M{"height": jim.Height},
	})
	if err != nil {
		return err
	}
	tallCities := []Place{}
	err = res.ScanAll(&tallCities)
	if err != nil {
		return err
	}
	fmt.Printf("This is a list of cities with people taller than Jim: %v\n", tallCities)
	return nil
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
