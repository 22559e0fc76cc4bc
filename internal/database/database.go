package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the database at path into DB.
func Init(path string) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens and migrates a SQLite database in WAL mode, creating its
// directory if needed.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&CourseProgress{}, &CourseNotes{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func Ping(db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Progress helpers

// GetProgress returns the completed lesson indices for a course, or nil if
// none were saved.
func GetProgress(db *gorm.DB, courseID string) ([]int, error) {
	var p CourseProgress
	err := db.Where("course_id = ?", courseID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.Completed, nil
}

func SaveProgress(db *gorm.DB, courseID string, completed []int) error {
	if completed == nil {
		completed = []int{}
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&CourseProgress{CourseID: courseID, Completed: completed}).Error
}

func DeleteProgress(db *gorm.DB, courseID string) error {
	return db.Where("course_id = ?", courseID).Delete(&CourseProgress{}).Error
}

// Notes helpers

// GetNotes returns the stored notes row, or a zero row if none was saved.
func GetNotes(db *gorm.DB, courseID string) (CourseNotes, error) {
	var n CourseNotes
	err := db.Where("course_id = ?", courseID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CourseNotes{CourseID: courseID}, nil
	}
	return n, err
}

func SaveNotes(db *gorm.DB, n CourseNotes) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&n).Error
}

// ListNotes returns every stored notes row.
func ListNotes(db *gorm.DB) ([]CourseNotes, error) {
	var rows []CourseNotes
	err := db.Order("course_id").Find(&rows).Error
	return rows, err
}
