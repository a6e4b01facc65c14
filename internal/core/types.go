package core

import "studycore/pkg/domain"

type (
	EntityType            = domain.EntityType
	Sex                   = domain.Sex
	Handedness            = domain.Handedness
	Base                  = domain.Base
	Subject               = domain.Subject
	Session               = domain.Session
	QuestionnaireResponse = domain.QuestionnaireResponse
	SECAMeasurement       = domain.SECAMeasurement
	Study                 = domain.Study
	Group                 = domain.Group
	Condition             = domain.Condition
	Lab                   = domain.Lab
	Procedure             = domain.Procedure
	Change                = domain.Change
	Action                = domain.Action
	Severity              = domain.Severity
	Violation             = domain.Violation
	Result                = domain.Result
	Rule                  = domain.Rule
	RulesEngine           = domain.RulesEngine
	RuleViolationError    = domain.RuleViolationError
)

const (
	EntitySubject               = domain.EntitySubject
	EntitySession               = domain.EntitySession
	EntityQuestionnaireResponse = domain.EntityQuestionnaireResponse
	EntitySECAMeasurement       = domain.EntitySECAMeasurement
	EntityStudy                 = domain.EntityStudy
	EntityGroup                 = domain.EntityGroup
	EntityCondition             = domain.EntityCondition
	EntityLab                   = domain.EntityLab
	EntityProcedure             = domain.EntityProcedure
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs a rules engine instance.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// DefaultRulesEngine returns an engine with every invariant rule registered.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(SessionIdentityRule())
	engine.Register(SubjectDefaultsRule())
	engine.Register(NaturalKeyRule())
	return engine
}
