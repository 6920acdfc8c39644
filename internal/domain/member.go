package domain

import "github.com/google/uuid"

// Member — участник клуба (спортсмен, тренер или аккаунт клуба).
//
// Для рассылок важны только поля, влияющие на выборку получателей:
// роль, активность, независимость и push-адрес.
type Member struct {
	// ID — уникальный идентификатор участника.
	ID uuid.UUID `json:"id"`

	// ClubID — клуб участника.
	ClubID uuid.UUID `json:"club_id"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// Role — роль: COACH / CLUB / MEMBER.
	Role CreatorRole `json:"role"`

	// Active — активен ли участник. Неактивные не получают рассылок.
	Active bool `json:"active"`

	// Independent — ведёт ли участник собственный биллинг.
	// Ежемесячное напоминание получают только зависимые (Independent=false).
	Independent bool `json:"independent"`

	// PushToken — зарегистрированный адрес доставки push.
	// Пустая строка — устройства нет; такие участники отфильтровываются
	// до обращения к шлюзу уведомлений.
	PushToken string `json:"push_token,omitempty"`
}

// HasPushToken возвращает true, если участнику можно доставить push.
func (m *Member) HasPushToken() bool {
	return m.PushToken != ""
}

// DedupMembers удаляет дубликаты участников по ID, сохраняя порядок.
func DedupMembers(members []Member) []Member {
	seen := make(map[uuid.UUID]struct{}, len(members))
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
