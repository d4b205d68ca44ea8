package inmem

import (
	"sync"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
)

type (
	// DB is an in-process store used for local runs and tests.
	DB struct {
		sessions *sessionTable
		clubs    *clubTable
		days     *dayTable
	}

	sessionTable struct {
		t     map[string]*attendance.Session
		mutex sync.RWMutex
	}

	clubTable struct {
		t     map[string]*attendance.Club
		mutex sync.RWMutex
	}

	dayTable struct {
		// keyed by club id, then YYYY-MM-DD
		t     map[string]map[string]*attendance.DayStatus
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		sessions: &sessionTable{t: make(map[string]*attendance.Session)},
		clubs:    &clubTable{t: make(map[string]*attendance.Club)},
		days:     &dayTable{t: make(map[string]map[string]*attendance.DayStatus)},
	}
}
