// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package transform folds row-per-join-product query results into one
// search document per entity. It is pure: no I/O, no logging, no global
// state. Callers own observability: each Transform function returns a
// skipped-row count for the caller to record against
// replication_rows_skipped_total.
package transform

const (
	// RoleActor identifies the actor role in person_film_work.
	RoleActor = "actor"
	// RoleProducer identifies the producer role in person_film_work.
	// It maps to the "writers" document field, a deliberate mismatch
	// between source vocabulary and document vocabulary that predates
	// this engine and must not be renamed without coordinating with
	// index consumers.
	RoleProducer = "producer"
	// RoleDirector identifies the director role in person_film_work.
	RoleDirector = "director"
)

// Ref is a minimal {id, name} reference embedded in film documents for
// actors, writers, directors, and genres.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FilmDocument is the movies-index document shape.
type FilmDocument struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	IMDBRating     *float64 `json:"imdb_rating"`
	Actors         []Ref    `json:"actors"`
	ActorsNames    []string `json:"actors_names"`
	Writers        []Ref    `json:"writers"`
	WritersNames   []string `json:"writers_names"`
	Directors      []Ref    `json:"directors"`
	DirectorsNames []string `json:"directors_names"`
	Genres         []Ref    `json:"genres"`
	GenresNames    []string `json:"genres_names"`

	// actor/writer/director dedup keys by full name, not id. This is
	// lossy and deliberate: two distinct persons sharing a full_name
	// collapse into one list entry, and downstream consumers depend
	// on that shape.
	actorNames    map[string]struct{}
	writerNames   map[string]struct{}
	directorNames map[string]struct{}
	genreNames    map[string]struct{}
}

func newFilmDocument(id, title, description string, rating *float64) *FilmDocument {
	return &FilmDocument{
		ID:             id,
		Title:          title,
		Description:    description,
		IMDBRating:     rating,
		Actors:         []Ref{},
		ActorsNames:    []string{},
		Writers:        []Ref{},
		WritersNames:   []string{},
		Directors:      []Ref{},
		DirectorsNames: []string{},
		Genres:         []Ref{},
		GenresNames:    []string{},
		actorNames:     map[string]struct{}{},
		writerNames:    map[string]struct{}{},
		directorNames:  map[string]struct{}{},
		genreNames:     map[string]struct{}{},
	}
}

// RawFilmRow is one row of the film left-join cross-product:
// (film × person-role × genre). Left joins mean Role/PersonID/
// PersonFullName/GenreID/GenreName may all be nil for a film with no
// links.
type RawFilmRow struct {
	FilmWorkID     string
	Title          string
	Description    string
	Rating         *float64
	Type           string
	PersonID       *string
	PersonFullName *string
	Role           *string
	GenreID        *string
	GenreName      *string
}

// valid reports whether a raw row carries the minimum scalar fields
// needed to seed a film document. A row missing these is dropped
// rather than wedging the fold.
func (r RawFilmRow) valid() bool {
	return r.FilmWorkID != "" && r.Title != ""
}

// Films folds a film-row cross-product into one FilmDocument per
// film id. Rows that fail basic validation are skipped and counted;
// genre entries dedup by name within a film, person entries dedup by
// full name within their role list.
func Films(rows []RawFilmRow) (map[string]*FilmDocument, int) {
	docs := make(map[string]*FilmDocument)
	skipped := 0

	for _, row := range rows {
		if !row.valid() {
			skipped++
			continue
		}

		doc, ok := docs[row.FilmWorkID]
		if !ok {
			doc = newFilmDocument(row.FilmWorkID, row.Title, row.Description, row.Rating)
			docs[row.FilmWorkID] = doc
		}

		if row.GenreID != nil && row.GenreName != nil {
			if _, seen := doc.genreNames[*row.GenreName]; !seen {
				doc.genreNames[*row.GenreName] = struct{}{}
				doc.Genres = append(doc.Genres, Ref{ID: *row.GenreID, Name: *row.GenreName})
				doc.GenresNames = append(doc.GenresNames, *row.GenreName)
			}
		}

		if row.Role == nil || row.PersonID == nil || row.PersonFullName == nil {
			continue
		}

		switch *row.Role {
		case RoleActor:
			addPersonRef(&doc.Actors, &doc.ActorsNames, doc.actorNames, *row.PersonID, *row.PersonFullName)
		case RoleProducer:
			addPersonRef(&doc.Writers, &doc.WritersNames, doc.writerNames, *row.PersonID, *row.PersonFullName)
		case RoleDirector:
			addPersonRef(&doc.Directors, &doc.DirectorsNames, doc.directorNames, *row.PersonID, *row.PersonFullName)
		default:
			// Unknown role values are ignored silently.
		}
	}

	return docs, skipped
}

func addPersonRef(refs *[]Ref, names *[]string, seen map[string]struct{}, id, name string) {
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	*refs = append(*refs, Ref{ID: id, Name: name})
	*names = append(*names, name)
}

// RawPersonRow is one row of a person×film×role join.
type RawPersonRow struct {
	PersonID   string
	FullName   string
	Role       string
	FilmWorkID string
}

// PersonDocument is the persons-index document shape.
type PersonDocument struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Role    []string `json:"role"`
	FilmIDs []string `json:"film_ids"`

	roleSet    map[string]struct{}
	filmIDsSet map[string]struct{}
}

func newPersonDocument(id, name string) *PersonDocument {
	return &PersonDocument{
		ID:         id,
		Name:       name,
		Role:       []string{},
		FilmIDs:    []string{},
		roleSet:    map[string]struct{}{},
		filmIDsSet: map[string]struct{}{},
	}
}

// Persons folds person×film×role rows into one PersonDocument per
// person id. Role and film_ids are both sets: repeats collapse.
func Persons(rows []RawPersonRow) (map[string]*PersonDocument, int) {
	docs := make(map[string]*PersonDocument)
	skipped := 0

	for _, row := range rows {
		if row.PersonID == "" || row.FullName == "" {
			skipped++
			continue
		}

		doc, ok := docs[row.PersonID]
		if !ok {
			doc = newPersonDocument(row.PersonID, row.FullName)
			docs[row.PersonID] = doc
		}

		if row.Role != "" {
			if _, seen := doc.roleSet[row.Role]; !seen {
				doc.roleSet[row.Role] = struct{}{}
				doc.Role = append(doc.Role, row.Role)
			}
		}
		if row.FilmWorkID != "" {
			if _, seen := doc.filmIDsSet[row.FilmWorkID]; !seen {
				doc.filmIDsSet[row.FilmWorkID] = struct{}{}
				doc.FilmIDs = append(doc.FilmIDs, row.FilmWorkID)
			}
		}
	}

	return docs, skipped
}

// RawGenreRow is one row of a genre×film join.
type RawGenreRow struct {
	GenreID     string
	Name        string
	Description string
	FilmWorkID  string
}

// GenreDocument is the genres-index document shape.
type GenreDocument struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FilmIDs     []string `json:"film_ids"`

	filmIDsSet map[string]struct{}
}

func newGenreDocument(id, name, description string) *GenreDocument {
	return &GenreDocument{
		ID:          id,
		Name:        name,
		Description: description,
		FilmIDs:     []string{},
		filmIDsSet:  map[string]struct{}{},
	}
}

// Genres folds genre×film rows into one GenreDocument per genre id.
func Genres(rows []RawGenreRow) (map[string]*GenreDocument, int) {
	docs := make(map[string]*GenreDocument)
	skipped := 0

	for _, row := range rows {
		if row.GenreID == "" || row.Name == "" {
			skipped++
			continue
		}

		doc, ok := docs[row.GenreID]
		if !ok {
			doc = newGenreDocument(row.GenreID, row.Name, row.Description)
			docs[row.GenreID] = doc
		}

		if row.FilmWorkID != "" {
			if _, seen := doc.filmIDsSet[row.FilmWorkID]; !seen {
				doc.filmIDsSet[row.FilmWorkID] = struct{}{}
				doc.FilmIDs = append(doc.FilmIDs, row.FilmWorkID)
			}
		}
	}

	return docs, skipped
}
