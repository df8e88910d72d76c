package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-iso20022/pkg/isofmt"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// Errors returned for caller contract violations. Content defects are never
// returned as errors.
var (
	ErrNilTree            = errors.New("rules: context or document tree is nil")
	ErrMissingMessageType = errors.New("rules: message type is empty")
)

// Profile selects the rule variant applied to currency codes.
type Profile int

const (
	// ProfileStandard reports unknown currencies as business rule failures
	// against the full allow-list.
	ProfileStandard Profile = iota
	// ProfileSimplified reports unknown currencies as invalid values against
	// the reduced allow-list.
	ProfileSimplified
)

func (p Profile) String() string {
	switch p {
	case ProfileStandard:
		return "standard"
	case ProfileSimplified:
		return "simplified"
	default:
		return fmt.Sprintf("Profile(%d)", int(p))
	}
}

// ParseProfile parses a profile name. The empty string selects ProfileStandard.
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return ProfileStandard, nil
	case "simplified", "simple":
		return ProfileSimplified, nil
	default:
		return 0, fmt.Errorf("unknown validation profile %q", name)
	}
}

// Currencies returns the allow-list used by the profile.
func (p Profile) Currencies() isofmt.CurrencySet {
	if p == ProfileSimplified {
		return isofmt.SimplifiedCurrencies
	}
	return isofmt.StandardCurrencies
}

// Option configures a Validator.
type Option func(*Validator)

// WithProfile selects the rule profile.
func WithProfile(p Profile) Option {
	return func(v *Validator) {
		v.profile = p
	}
}

// WithLogger sets the logger used for recovered rule failures.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Validator applies the business rules of a message family to a parsed
// document. A Validator is immutable and safe for concurrent use.
type Validator struct {
	profile Profile
	logger  *slog.Logger
}

// New creates a validator using ProfileStandard unless configured otherwise.
func New(opts ...Option) *Validator {
	v := &Validator{
		profile: ProfileStandard,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Profile returns the configured profile.
func (v *Validator) Profile() Profile {
	return v.profile
}

// check is one rule. Rules append defects to the scope; a returned error or
// a panic is reported as a single <category>_VALIDATION_ERROR defect.
type check struct {
	category string
	run      func(*scope) error
}

var (
	messageIDCheck     = check{"MESSAGE_ID", checkMessageID}
	creationDateCheck  = check{"CREATION_DATE", checkCreationDatePresent}
	requiredBlockCheck = check{"REQUIRED_BLOCK", checkRequiredBlocks}
)

// commonChecks run for every family, including unknown ones.
var commonChecks = []check{
	{"DATE", checkDates},
	{"AMOUNT", checkAmounts},
	{"CURRENCY", checkCurrencies},
	{"BIC", checkBICs},
}

// familyChecks run before the common checks for families carrying a group
// header.
var familyChecks = map[message.Family][]check{
	message.FamilyPain001: {messageIDCheck, creationDateCheck, requiredBlockCheck},
	message.FamilyPacs008: {messageIDCheck, creationDateCheck, requiredBlockCheck},
	message.FamilyPain002: {messageIDCheck, creationDateCheck},
	message.FamilyPacs002: {messageIDCheck, creationDateCheck},
	message.FamilyPacs004: {messageIDCheck, creationDateCheck},
	message.FamilyCamt053: {messageIDCheck, creationDateCheck},
}

// scope carries the state of one validation run.
type scope struct {
	mc      *message.Context
	family  message.Family
	root    *etree.Element
	profile Profile
	errs    []message.ValidationError
}

// add records e, locating it at el when el is not nil.
func (s *scope) add(e message.ValidationError, el *etree.Element) {
	if el != nil && e.Path == "" {
		e.Path = locate(el)
	}
	s.errs = append(s.errs, e)
}

// Validate returns the business rule defects of mc in rule order.
func (v *Validator) Validate(mc *message.Context) ([]message.ValidationError, error) {
	if mc == nil || mc.Tree == nil || mc.Tree.Root() == nil {
		return nil, ErrNilTree
	}
	if mc.MessageType == "" {
		return nil, ErrMissingMessageType
	}

	s := &scope{
		mc:      mc,
		family:  mc.Family(),
		root:    mc.Tree.Root(),
		profile: v.profile,
	}
	for _, c := range familyChecks[s.family] {
		v.apply(s, c)
	}
	for _, c := range commonChecks {
		v.apply(s, c)
	}

	v.logger.Debug("business rules evaluated",
		"message_id", mc.MessageID,
		"message_type", mc.MessageType,
		"profile", v.profile.String(),
		"errors", len(s.errs),
	)
	return s.errs, nil
}

// apply runs c, converting a failure into one defect. Defects c recorded
// before failing are kept.
func (v *Validator) apply(s *scope, c check) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return c.run(s)
	}()
	if err == nil {
		return
	}

	v.logger.Warn("business rule failed",
		"message_id", s.mc.MessageID,
		"rule", c.category,
		"error", err,
	)
	s.add(message.BusinessRuleError(
		c.category+"_VALIDATION_ERROR",
		fmt.Sprintf("Error validating %s: %v", strings.ToLower(strings.ReplaceAll(c.category, "_", " ")), err),
		"",
		nil,
	), nil)
}
