package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/auth"
	"traincomp/internal/database"
)

// UserHandler 处理员工账号的增删改查。
type UserHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
}

func NewUserHandler(db *gorm.DB, authService *auth.AuthService) *UserHandler {
	return &UserHandler{db: db, authService: authService}
}

type userResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmployeeID    string `json:"employeeId"`
	Mobile        string `json:"mobile,omitempty"`
	Role          string `json:"role"`
	EmployeeType  string `json:"employeeType,omitempty"`
	DateOfJoining string `json:"dateOfJoining,omitempty"`
	IsActive      bool   `json:"isActive"`
	DepartmentID  uint   `json:"departmentId"`
	Department    string `json:"department,omitempty"`
	DesignationID uint   `json:"designationId"`
	Designation   string `json:"designation,omitempty"`
}

func toUserResponse(u database.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmployeeID:    u.EmployeeID,
		Mobile:        u.Mobile,
		Role:          u.Role,
		EmployeeType:  u.EmployeeType,
		DateOfJoining: u.DateOfJoining,
		IsActive:      u.IsActive,
		DepartmentID:  u.DepartmentID,
		Department:    u.Department.Name,
		DesignationID: u.DesignationID,
		Designation:   u.Designation.Name,
	}
}

type createUserRequest struct {
	Name          string `json:"name" binding:"required,max=128"`
	Email         string `json:"email" binding:"required,email"`
	EmployeeID    string `json:"employeeId" binding:"required,max=64"`
	Mobile        string `json:"mobile"`
	Password      string `json:"password" binding:"required,min=8,max=72"`
	Role          string `json:"role" binding:"required,oneof=ADMIN HR HOD EMPLOYEE"`
	EmployeeType  string `json:"employeeType"`
	DateOfJoining string `json:"dateOfJoining"`
	DepartmentID  uint   `json:"departmentId" binding:"required"`
	DesignationID uint   `json:"designationId" binding:"required"`
}

// Create 新建员工账号（HR/ADMIN）。
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing database.User
	err := h.db.WithContext(ctx).
		Where("email = ? OR employee_id = ?", email, req.EmployeeID).
		First(&existing).Error
	if err == nil {
		Conflict(c, "email or employee id already taken")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("user lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		EmployeeID:    strings.TrimSpace(req.EmployeeID),
		Mobile:        req.Mobile,
		PasswordHash:  hashed,
		Role:          req.Role,
		EmployeeType:  req.EmployeeType,
		DateOfJoining: req.DateOfJoining,
		IsActive:      true,
		DepartmentID:  req.DepartmentID,
		DesignationID: req.DesignationID,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user created", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, toUserResponse(user))
}

// List 列出员工，支持 department_id/designation_id/q 过滤；HOD 只能看本部门。
func (h *UserHandler) List(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	requestedDept, _ := strconv.ParseUint(c.Query("department_id"), 10, 64)
	departmentID := scopeDepartment(id, uint(requestedDept))

	q := h.db.WithContext(c.Request.Context()).
		Preload("Department").
		Preload("Designation").
		Order("name ASC")
	if departmentID != 0 {
		q = q.Where("department_id = ?", departmentID)
	}
	if designationID, _ := strconv.ParseUint(c.Query("designation_id"), 10, 64); designationID != 0 {
		q = q.Where("designation_id = ?", designationID)
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(employee_id) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if !parseBoolDefault(c.Query("include_inactive"), false) {
		q = q.Where("is_active = ?", true)
	}

	var users []database.User
	if err := q.Find(&users).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list users failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

// Get 返回单个员工。HOD 仅限本部门。
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}

	var user database.User
	err = h.db.WithContext(c.Request.Context()).
		Preload("Department").
		Preload("Designation").
		First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		middleware.LoggerFromContext(c).Error("get user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if id.Role == database.RoleHOD && user.DepartmentID != id.DepartmentID {
		Forbidden(c, "user outside your department")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	Name          *string `json:"name"`
	Mobile        *string `json:"mobile"`
	Role          *string `json:"role" binding:"omitempty,oneof=ADMIN HR HOD EMPLOYEE"`
	EmployeeType  *string `json:"employeeType"`
	DateOfJoining *string `json:"dateOfJoining"`
	IsActive      *bool   `json:"isActive"`
	DepartmentID  *uint   `json:"departmentId"`
	DesignationID *uint   `json:"designationId"`
}

// Update 部分更新员工资料（HR/ADMIN）。
func (h *UserHandler) Update(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		middleware.LoggerFromContext(c).Error("get user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Mobile != nil {
		updates["mobile"] = *req.Mobile
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.EmployeeType != nil {
		updates["employee_type"] = *req.EmployeeType
	}
	if req.DateOfJoining != nil {
		updates["date_of_joining"] = *req.DateOfJoining
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.DepartmentID != nil {
		updates["department_id"] = *req.DepartmentID
	}
	if req.DesignationID != nil {
		updates["designation_id"] = *req.DesignationID
	}
	if len(updates) == 0 {
		BadRequest(c, "no fields to update")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Preload("Department").Preload("Designation").First(&user, userID).Error; err != nil {
		middleware.LoggerFromContext(c).Error("reload user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// Deactivate 停用账号（软下线，不删行）。
func (h *UserHandler) Deactivate(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&database.User{}).
		Where("id = ?", userID).
		Update("is_active", false)
	if result.Error != nil {
		middleware.LoggerFromContext(c).Error("deactivate user failed", slog.Any("error", result.Error))
		Internal(c, "internal error")
		return
	}
	if result.RowsAffected == 0 {
		NotFound(c, "user not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me 返回当前登录员工的资料。
func (h *UserHandler) Me(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	err := h.db.WithContext(c.Request.Context()).
		Preload("Department").
		Preload("Designation").
		First(&user, id.UserID).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("load current user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func parseIDParam(c *gin.Context) (uint, error) {
	return parseUintParam(c, "id")
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func parseBoolDefault(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
