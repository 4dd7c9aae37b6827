package repository

import (
	"context"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, routeNames []string) error
	RouteNamesByRoleID(ctx context.Context, roleID uuid.UUID) ([]string, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Model(role).Select("Name", "Description").Updates(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", id).Delete(&model.Permission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	err := GetDB(ctx, r.db).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("route_name asc") }).
		First(&role, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("route_name asc") }).
		Order("name asc").Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ReplacePermissions swaps the role's grants for exactly routeNames.
// Callers run it inside a transaction.
func (r *roleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, routeNames []string) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", roleID).Delete(&model.Permission{}).Error; err != nil {
		return err
	}
	if len(routeNames) == 0 {
		return nil
	}

	perms := make([]model.Permission, 0, len(routeNames))
	for _, name := range routeNames {
		perms = append(perms, model.Permission{RoleID: roleID, RouteName: name})
	}
	return db.Create(&perms).Error
}

func (r *roleRepository) RouteNamesByRoleID(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Model(&model.Permission{}).
		Where("role_id = ?", roleID).
		Order("route_name asc").
		Pluck("route_name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
