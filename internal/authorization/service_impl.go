package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrder        = "order"
	ObjectProduct      = "product"
	ObjectUser         = "user"
	ObjectAnalytics    = "analytics"
	ObjectNotification = "notification"
	ObjectProfile      = "profile"
)

const (
	ActionOrderCreate       = "order.create"
	ActionOrderViewOwn      = "order.view_own"
	ActionOrderViewAll      = "order.view_all"
	ActionOrderUpdateStatus = "order.update_status"

	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"

	ActionUserView   = "user.view"
	ActionUserUpdate = "user.update"
	ActionUserDelete = "user.delete"

	ActionAnalyticsView = "analytics.view"

	ActionNotificationListen = "notification.listen"
	ActionNotificationSend   = "notification.send"

	ActionProfileUpdate = "profile.update"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) string {
	return "role:" + role
}

var (
	adminSubject    = roleSubject(authcontext.RoleAdmin)
	employeeSubject = roleSubject(authcontext.RoleEmployee)

	// Admins additionally inherit every employee rule through the role link.
	defaultPolicies = [][]string{
		{employeeSubject, ObjectOrder, ActionOrderCreate},
		{employeeSubject, ObjectOrder, ActionOrderViewOwn},
		{employeeSubject, ObjectProduct, ActionProductView},
		{employeeSubject, ObjectProfile, ActionProfileUpdate},
		{employeeSubject, ObjectNotification, ActionNotificationListen},
		{adminSubject, "*", "*"},
	}
	defaultRoleLinks = [][]string{
		{adminSubject, employeeSubject},
	}
)

// seedPolicies adds the built-in rules, leaving rows that already exist.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	if _, err := enforcer.AddPoliciesEx(defaultPolicies); err != nil {
		return err
	}
	_, err := enforcer.AddGroupingPoliciesEx(defaultRoleLinks)
	return err
}
