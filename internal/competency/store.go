package competency

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"traincomp/internal/database"
)

// UserFilter 限定组织矩阵展示哪些员工。Query 在内存中对
// 姓名/工号/邮箱做大小写不敏感的子串匹配。
type UserFilter struct {
	DepartmentID  uint
	DesignationID uint
	Query         string
}

// Store 是聚合计算的只读数据边界。实现方必须保证：
// 返回的技能引用不含软删行，等级快照里技能也都仍然存活。
type Store interface {
	// GetUser 加载员工及其部门/岗位名称；员工不存在时返回 ErrUserNotFound。
	GetUser(ctx context.Context, userID uint) (*UserRecord, error)
	// ActiveUsersByDepartment 返回部门内的在职员工，按姓名排序。
	ActiveUsersByDepartment(ctx context.Context, departmentID uint) ([]UserRecord, error)
	// ActiveUsers 返回按过滤器筛选后的在职员工，按姓名排序。
	ActiveUsers(ctx context.Context, filter UserFilter) ([]UserRecord, error)
	// CandidateSkills 返回岗位关联的、未被软删的技能，按名称排序。
	CandidateSkills(ctx context.Context, designationID uint) ([]SkillRef, error)
	// LevelsForUser 返回员工的等级快照，键为技能 ID。
	LevelsForUser(ctx context.Context, userID uint) (map[uint]LevelRecord, error)
	// TrainingsForSkill 返回能提升指定技能的培训。
	TrainingsForSkill(ctx context.Context, skillID uint) ([]TrainingRef, error)
}

// UserRecord 是 Store 返回的员工快照。
type UserRecord struct {
	Info          UserInfo
	DesignationID uint
}

// GormStore 基于 GORM 实现 Store。软删除的技能/部门/岗位依赖
// gorm.DeletedAt 的默认作用域被自动过滤，调用侧永远看不到半解析的行。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 构造 GormStore。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetUser(ctx context.Context, userID uint) (*UserRecord, error) {
	var user database.User
	err := s.db.WithContext(ctx).
		Preload("Department").
		Preload("Designation").
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user %d: %w", userID, err)
	}
	rec := toUserRecord(user)
	return &rec, nil
}

func (s *GormStore) ActiveUsersByDepartment(ctx context.Context, departmentID uint) ([]UserRecord, error) {
	var users []database.User
	err := s.db.WithContext(ctx).
		Preload("Department").
		Preload("Designation").
		Where("department_id = ? AND is_active = ?", departmentID, true).
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("query department %d users: %w", departmentID, err)
	}
	return toUserRecords(users), nil
}

func (s *GormStore) ActiveUsers(ctx context.Context, filter UserFilter) ([]UserRecord, error) {
	q := s.db.WithContext(ctx).
		Preload("Department").
		Preload("Designation").
		Where("is_active = ?", true)
	if filter.DepartmentID != 0 {
		q = q.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.DesignationID != 0 {
		q = q.Where("designation_id = ?", filter.DesignationID)
	}

	var users []database.User
	if err := q.Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	return toUserRecords(users), nil
}

func (s *GormStore) CandidateSkills(ctx context.Context, designationID uint) ([]SkillRef, error) {
	var links []database.DesignationSkill
	err := s.db.WithContext(ctx).
		Where("designation_id = ?", designationID).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("query designation %d skills: %w", designationID, err)
	}
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.SkillID)
	}

	// 软删的技能不会被 Find 返回，映射行随之自然消失。
	var skills []database.Skill
	if err := s.db.WithContext(ctx).Find(&skills, ids).Error; err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}

	refs := make([]SkillRef, 0, len(skills))
	for _, sk := range skills {
		refs = append(refs, SkillRef{ID: sk.ID, Name: sk.Name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (s *GormStore) LevelsForUser(ctx context.Context, userID uint) (map[uint]LevelRecord, error) {
	var rows []database.UserSkillLevel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query user %d skill levels: %w", userID, err)
	}
	if len(rows) == 0 {
		return map[uint]LevelRecord{}, nil
	}

	// 只保留技能仍存活的记录。
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SkillID)
	}
	var skills []database.Skill
	if err := s.db.WithContext(ctx).Select("id").Find(&skills, ids).Error; err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	alive := make(map[uint]struct{}, len(skills))
	for _, sk := range skills {
		alive[sk.ID] = struct{}{}
	}

	levels := make(map[uint]LevelRecord, len(rows))
	for _, r := range rows {
		if _, ok := alive[r.SkillID]; !ok {
			continue
		}
		levels[r.SkillID] = LevelRecord{Current: r.CurrentLevel, Required: r.RequiredLevel}
	}
	return levels, nil
}

func (s *GormStore) TrainingsForSkill(ctx context.Context, skillID uint) ([]TrainingRef, error) {
	var links []database.TrainingSkill
	err := s.db.WithContext(ctx).
		Preload("Training").
		Where("skill_id = ?", skillID).
		Order("training_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("query trainings for skill %d: %w", skillID, err)
	}

	refs := make([]TrainingRef, 0, len(links))
	for _, l := range links {
		if l.Training.ID == 0 {
			continue
		}
		refs = append(refs, TrainingRef{ID: l.Training.ID, Topic: l.Training.Topic})
	}
	return refs, nil
}

func toUserRecord(u database.User) UserRecord {
	return UserRecord{
		Info: UserInfo{
			ID:          u.ID,
			Name:        u.Name,
			EmployeeID:  u.EmployeeID,
			Email:       u.Email,
			Department:  u.Department.Name,
			Designation: u.Designation.Name,
		},
		DesignationID: u.DesignationID,
	}
}

func toUserRecords(users []database.User) []UserRecord {
	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, toUserRecord(u))
	}
	return records
}
