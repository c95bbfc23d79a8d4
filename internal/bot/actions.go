package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownAction = errors.New("unknown callback action")

// Action is a decoded inline-button press. Every variant round-trips through
// its CallbackData.
type Action interface {
	CallbackData() string
	action()
}

type (
	MainMenu        struct{}
	MyBalance       struct{}
	ReferFriends    struct{}
	MyReferrals     struct{}
	TopReferrers    struct{}
	Statistics      struct{}
	Help            struct{}
	VerifyJoin      struct{}
	StartWithdrawal struct{}
	SelectMethod    struct{ Method string }
	AdminStats      struct{}
	AdminPending    struct{}
	AdminBroadcast  struct{}
	Approve         struct{ ID int64 }
	Reject          struct{ ID int64 }
)

const (
	dataMainMenu        = "main_menu"
	dataMyBalance       = "my_balance"
	dataReferFriends    = "refer_friends"
	dataMyReferrals     = "my_referrals"
	dataTopReferrers    = "top_referrers"
	dataStatistics      = "statistics"
	dataHelp            = "help_support"
	dataVerifyJoin      = "verify_join"
	dataStartWithdrawal = "withdraw"
	dataAdminStats      = "admin_stats"
	dataAdminPending    = "admin_withdrawals"
	dataAdminBroadcast  = "admin_broadcast"

	prefixSelectMethod = "withdraw:"
	prefixApprove      = "admin_approve:"
	prefixReject       = "admin_reject:"
)

func (MainMenu) CallbackData() string        { return dataMainMenu }
func (MyBalance) CallbackData() string       { return dataMyBalance }
func (ReferFriends) CallbackData() string    { return dataReferFriends }
func (MyReferrals) CallbackData() string     { return dataMyReferrals }
func (TopReferrers) CallbackData() string    { return dataTopReferrers }
func (Statistics) CallbackData() string      { return dataStatistics }
func (Help) CallbackData() string            { return dataHelp }
func (VerifyJoin) CallbackData() string      { return dataVerifyJoin }
func (StartWithdrawal) CallbackData() string { return dataStartWithdrawal }
func (AdminStats) CallbackData() string      { return dataAdminStats }
func (AdminPending) CallbackData() string    { return dataAdminPending }
func (AdminBroadcast) CallbackData() string  { return dataAdminBroadcast }

func (a SelectMethod) CallbackData() string { return prefixSelectMethod + a.Method }
func (a Approve) CallbackData() string      { return prefixApprove + strconv.FormatInt(a.ID, 10) }
func (a Reject) CallbackData() string       { return prefixReject + strconv.FormatInt(a.ID, 10) }

func (MainMenu) action()        {}
func (MyBalance) action()       {}
func (ReferFriends) action()    {}
func (MyReferrals) action()     {}
func (TopReferrers) action()    {}
func (Statistics) action()      {}
func (Help) action()            {}
func (VerifyJoin) action()      {}
func (StartWithdrawal) action() {}
func (SelectMethod) action()    {}
func (AdminStats) action()      {}
func (AdminPending) action()    {}
func (AdminBroadcast) action()  {}
func (Approve) action()         {}
func (Reject) action()          {}

var simpleActions = map[string]Action{
	dataMainMenu:        MainMenu{},
	dataMyBalance:       MyBalance{},
	dataReferFriends:    ReferFriends{},
	dataMyReferrals:     MyReferrals{},
	dataTopReferrers:    TopReferrers{},
	dataStatistics:      Statistics{},
	dataHelp:            Help{},
	dataVerifyJoin:      VerifyJoin{},
	dataStartWithdrawal: StartWithdrawal{},
	dataAdminStats:      AdminStats{},
	dataAdminPending:    AdminPending{},
	dataAdminBroadcast:  AdminBroadcast{},
}

// ParseAction decodes callback data produced by Action.CallbackData.
func ParseAction(data string) (Action, error) {
	if a, ok := simpleActions[data]; ok {
		return a, nil
	}

	switch {
	case strings.HasPrefix(data, prefixSelectMethod):
		method := strings.TrimPrefix(data, prefixSelectMethod)
		if method == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, data)
		}
		return SelectMethod{Method: method}, nil
	case strings.HasPrefix(data, prefixApprove):
		id, err := parseID(data, prefixApprove)
		if err != nil {
			return nil, err
		}
		return Approve{ID: id}, nil
	case strings.HasPrefix(data, prefixReject):
		id, err := parseID(data, prefixReject)
		if err != nil {
			return nil, err
		}
		return Reject{ID: id}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

func parseID(data, prefix string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}
	return id, nil
}
