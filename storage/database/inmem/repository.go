package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
)

type (
	// DB keeps students and their grades in memory.
	DB struct {
		txMutex  sync.Mutex // one transaction at a time
		mutex    sync.RWMutex
		students map[string]grading.StudentIdentity
		grades   map[grading.Period]map[string][]grading.GradeEntry
	}

	Repository struct {
		db *DB
	}
)

func Open() *DB {
	return &DB{
		students: make(map[string]grading.StudentIdentity),
		grades:   make(map[grading.Period]map[string][]grading.GradeEntry),
	}
}

var _ bulletin.Repository = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// WithinTx runs fn with a repository bound to a copy of the data, which replaces the data only when fn returns nil.
// Writes made outside of transactions while fn runs are lost on commit.
func (repo *Repository) WithinTx(_ context.Context, fn func(repo *Repository) error) error {
	repo.db.txMutex.Lock()
	defer repo.db.txMutex.Unlock()

	tx := repo.db.clone()
	if err := fn(NewRepository(tx)); err != nil {
		return err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.students, repo.db.grades = tx.students, tx.grades
	return nil
}

func (db *DB) clone() *DB {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	c := Open()
	for id, s := range db.students {
		c.students[id] = s
	}
	for period, byStudent := range db.grades {
		c.grades[period] = make(map[string][]grading.GradeEntry, len(byStudent))
		for id, entries := range byStudent {
			c.grades[period][id] = append([]grading.GradeEntry(nil), entries...)
		}
	}
	return c
}

func (repo *Repository) ClassRoster(_ context.Context, className string) ([]grading.StudentIdentity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	roster := make([]grading.StudentIdentity, 0)
	for _, s := range repo.db.students {
		if s.ClassName == className {
			roster = append(roster, s)
		}
	}
	sort.Slice(roster, func(i, j int) bool {
		a, b := roster[i], roster[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return roster, nil
}

func (repo *Repository) Student(_ context.Context, id string) (grading.StudentIdentity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return grading.StudentIdentity{}, bulletin.ErrStudentNotFound
}

func (repo *Repository) PeriodGrades(_ context.Context, studentIDs []string, period grading.Period) (map[string][]grading.GradeEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make(map[string][]grading.GradeEntry)
	for _, id := range studentIDs {
		if entries := repo.db.grades[period][id]; len(entries) > 0 {
			grades[id] = append([]grading.GradeEntry(nil), entries...)
		}
	}
	return grades, nil
}

func (repo *Repository) SaveStudent(_ context.Context, s grading.StudentIdentity) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.students[s.ID] = s
	return nil
}

func (repo *Repository) ReplaceGrades(_ context.Context, studentID string, period grading.Period, entries []grading.GradeEntry) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[studentID]; !ok {
		return bulletin.ErrStudentNotFound
	}
	if repo.db.grades[period] == nil {
		repo.db.grades[period] = make(map[string][]grading.GradeEntry)
	}
	repo.db.grades[period][studentID] = append([]grading.GradeEntry(nil), entries...)
	return nil
}
