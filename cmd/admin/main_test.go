package main

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"traincomp/internal/database"
)

func newBootstrapDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 打开外键约束，让种子行缺失像在 Postgres 上一样直接报错。
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestBootstrapAdminSeedsDepartmentAndDesignation(t *testing.T) {
	db := newBootstrapDB(t)

	user, password, err := bootstrapAdmin(db, "root@example.com", "Administrator", "ADMIN-001")
	if err != nil {
		t.Fatalf("bootstrapAdmin: %v", err)
	}
	if password == "" {
		t.Fatal("password must be generated")
	}
	if user.DepartmentID == 0 || user.DesignationID == 0 {
		t.Fatalf("user = %+v, foreign keys must point at seed rows", user)
	}

	var dept database.Department
	if err := db.First(&dept, user.DepartmentID).Error; err != nil {
		t.Fatalf("seed department missing: %v", err)
	}
	if dept.Name != "Administration" {
		t.Errorf("department = %q, want Administration", dept.Name)
	}
	var desig database.Designation
	if err := db.First(&desig, user.DesignationID).Error; err != nil {
		t.Fatalf("seed designation missing: %v", err)
	}
	if desig.Name != "Administrator" {
		t.Errorf("designation = %q, want Administrator", desig.Name)
	}
}

func TestBootstrapAdminRejectsDuplicateEmail(t *testing.T) {
	db := newBootstrapDB(t)

	if _, _, err := bootstrapAdmin(db, "root@example.com", "Administrator", "ADMIN-001"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if _, _, err := bootstrapAdmin(db, "root@example.com", "Administrator", "ADMIN-002"); err == nil {
		t.Fatal("duplicate email must be rejected")
	}
}

func TestBootstrapAdminReusesSeedRows(t *testing.T) {
	db := newBootstrapDB(t)

	if _, _, err := bootstrapAdmin(db, "root@example.com", "Administrator", "ADMIN-001"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if _, _, err := bootstrapAdmin(db, "backup@example.com", "Backup Admin", "ADMIN-002"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	var deptCount, desigCount int64
	if err := db.Model(&database.Department{}).Count(&deptCount).Error; err != nil {
		t.Fatalf("count departments: %v", err)
	}
	if err := db.Model(&database.Designation{}).Count(&desigCount).Error; err != nil {
		t.Fatalf("count designations: %v", err)
	}
	if deptCount != 1 || desigCount != 1 {
		t.Fatalf("seed rows = %d/%d, want one of each", deptCount, desigCount)
	}
}
