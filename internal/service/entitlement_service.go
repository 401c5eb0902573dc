package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

// Principal is the authenticated actor evaluated against a resource.
type Principal struct {
	UserID string
	Role   models.UserRole
}

// AccessReason is the machine-readable outcome of an entitlement check.
type AccessReason string

const (
	ReasonOK              AccessReason = "OK"
	ReasonNotFound        AccessReason = "NOT_FOUND"
	ReasonPaymentRequired AccessReason = "PAYMENT_REQUIRED"
	ReasonNotEnrolled     AccessReason = "NOT_ENROLLED"
	ReasonForbidden       AccessReason = "FORBIDDEN"
)

// Decision is the outcome of evaluating a principal against a resource.
// Expected denials are values, not errors; only storage faults surface as
// Go errors from the evaluator.
type Decision struct {
	Allow  bool
	Reason AccessReason
}

var (
	allow = Decision{Allow: true, Reason: ReasonOK}
)

func deny(reason AccessReason) Decision {
	return Decision{Allow: false, Reason: reason}
}

// Err translates a denial into the typed error the transport layer maps to
// an HTTP status. Returns nil for an allowing decision.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	switch d.Reason {
	case ReasonNotFound:
		return appErrors.ErrNotFound
	case ReasonPaymentRequired:
		return appErrors.ErrPaymentRequired
	case ReasonNotEnrolled:
		return appErrors.ErrNotEnrolled
	default:
		return appErrors.ErrForbidden
	}
}

type entitlementPaymentReader interface {
	HasCompleted(ctx context.Context, studentID, courseID string) (bool, error)
}

type entitlementEnrollmentReader interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
}

// accessRule inspects one facet of the request. matched=false passes
// control to the next rule; the first matching rule wins.
type accessRule func(ctx context.Context, p Principal, course *models.Course, lesson *models.Lesson) (Decision, bool, error)

// EntitlementService answers "may principal P read resource R?" for courses
// and lessons with a single ordered rule list, so the evaluation order is a
// visible artifact rather than implicit control flow.
//
// Order matters: the owner and admin bypasses run before the publication
// gate so instructors and admins can read their own drafts, while drafts
// stay indistinguishable from nonexistent courses for everyone else.
type EntitlementService struct {
	payments    entitlementPaymentReader
	enrollments entitlementEnrollmentReader
	logger      *zap.Logger
	rules       []accessRule
}

// NewEntitlementService constructs the evaluator with its fixed rule order.
func NewEntitlementService(payments entitlementPaymentReader, enrollments entitlementEnrollmentReader, logger *zap.Logger) *EntitlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EntitlementService{payments: payments, enrollments: enrollments, logger: logger}
	s.rules = []accessRule{
		s.ownerBypass,
		s.adminBypass,
		s.publicationGate,
		s.studentGate,
	}
	return s
}

// EvaluateCourseAccess decides read access to a course's content.
func (s *EntitlementService) EvaluateCourseAccess(ctx context.Context, p Principal, course *models.Course) (Decision, error) {
	return s.evaluate(ctx, p, course, nil)
}

// EvaluateLessonAccess decides read access to a lesson, given its parent
// course. Lesson access has no independent policy; it is the course policy
// plus the lesson's own publication flag.
func (s *EntitlementService) EvaluateLessonAccess(ctx context.Context, p Principal, lesson *models.Lesson, course *models.Course) (Decision, error) {
	return s.evaluate(ctx, p, course, lesson)
}

// EvaluateOwnership decides mutation rights on a course and its children:
// admins, or the instructor owning the course.
func (s *EntitlementService) EvaluateOwnership(p Principal, course *models.Course) Decision {
	if p.Role == models.RoleAdmin {
		return allow
	}
	if p.Role == models.RoleInstructor && course != nil && course.InstructorID == p.UserID {
		return allow
	}
	return deny(ReasonForbidden)
}

func (s *EntitlementService) evaluate(ctx context.Context, p Principal, course *models.Course, lesson *models.Lesson) (Decision, error) {
	if course == nil {
		return deny(ReasonNotFound), nil
	}
	for _, rule := range s.rules {
		decision, matched, err := rule(ctx, p, course, lesson)
		if err != nil {
			return deny(ReasonForbidden), appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "entitlement lookup failed")
		}
		if matched {
			return decision, nil
		}
	}
	// Default deny: unknown role or state combination.
	return deny(ReasonForbidden), nil
}

// ownerBypass lets the owning instructor read everything in the course,
// drafts included. No payment or enrollment check applies.
func (s *EntitlementService) ownerBypass(_ context.Context, p Principal, course *models.Course, _ *models.Lesson) (Decision, bool, error) {
	if p.Role == models.RoleInstructor && course.InstructorID == p.UserID {
		return allow, true, nil
	}
	return Decision{}, false, nil
}

// adminBypass grants admins blanket read access.
func (s *EntitlementService) adminBypass(_ context.Context, p Principal, _ *models.Course, _ *models.Lesson) (Decision, bool, error) {
	if p.Role == models.RoleAdmin {
		return allow, true, nil
	}
	return Decision{}, false, nil
}

// publicationGate hides drafts from non-owners. The reason is NOT_FOUND,
// not FORBIDDEN, so the existence of unpublished content never leaks.
func (s *EntitlementService) publicationGate(_ context.Context, _ Principal, course *models.Course, lesson *models.Lesson) (Decision, bool, error) {
	if !course.IsPublished {
		return deny(ReasonNotFound), true, nil
	}
	if lesson != nil && !lesson.IsPublished {
		return deny(ReasonNotFound), true, nil
	}
	return Decision{}, false, nil
}

// studentGate checks payment then enrollment for students. The enrollment
// check is unconditional: a completed payment without an enrollment row
// does not grant access.
func (s *EntitlementService) studentGate(ctx context.Context, p Principal, course *models.Course, _ *models.Lesson) (Decision, bool, error) {
	if p.Role != models.RoleStudent {
		return Decision{}, false, nil
	}
	if course.Pricing > 0 {
		paid, err := s.payments.HasCompleted(ctx, p.UserID, course.ID)
		if err != nil {
			return Decision{}, false, err
		}
		if !paid {
			return deny(ReasonPaymentRequired), true, nil
		}
	}
	enrolled, err := s.enrollments.Exists(ctx, p.UserID, course.ID)
	if err != nil {
		return Decision{}, false, err
	}
	if !enrolled {
		return deny(ReasonNotEnrolled), true, nil
	}
	return allow, true, nil
}
