package fixtures

import (
	"github.com/lumenly/eventcore/pkg/domain"
)

// TodoList is a list of items, each independently completable. Its items
// are projected as child-scoped views (view id derived from the event, not
// from the aggregate id) to exercise the read-side query port's
// parent-scoped lookups.
type TodoList struct {
	ID    string
	Title string
	Items map[string]TodoItem
}

// TodoItem is one entry on a TodoList.
type TodoItem struct {
	ID        string
	Title     string
	Completed bool
}

// TodoList events.

type TodoListCreated struct {
	ListID string
	Title  string
}

func (TodoListCreated) EventType() string { return "todolist.created" }

type ItemAdded struct {
	ItemID string
	Title  string
}

func (ItemAdded) EventType() string { return "todolist.item_added" }

type ItemCompleted struct {
	ItemID string
}

func (ItemCompleted) EventType() string { return "todolist.item_completed" }

type ItemRemoved struct {
	ItemID string
}

func (ItemRemoved) EventType() string { return "todolist.item_removed" }

// TodoList commands.

type CreateTodoList struct {
	Title string
}

type UpdateTodoList struct {
	AddItem      *AddItemCommand
	CompleteItem string
	RemoveItem   string
}

type AddItemCommand struct {
	ItemID string
	Title  string
}

func (t *TodoList) AggregateType() string { return "todolist" }

// SetID assigns the aggregate id the engine generated before HandleCreate
// runs, so HandleCreate can stamp it onto the TodoListCreated event.
func (t *TodoList) SetID(id string) { t.ID = id }

func (t *TodoList) Apply(event domain.Event) {
	if t.Items == nil {
		t.Items = make(map[string]TodoItem)
	}
	switch e := event.(type) {
	case TodoListCreated:
		t.ID = e.ListID
		t.Title = e.Title
	case ItemAdded:
		t.Items[e.ItemID] = TodoItem{ID: e.ItemID, Title: e.Title}
	case ItemCompleted:
		if item, ok := t.Items[e.ItemID]; ok {
			item.Completed = true
			t.Items[e.ItemID] = item
		}
	case ItemRemoved:
		delete(t.Items, e.ItemID)
	}
}

func (t *TodoList) HandleCreate(cmd CreateTodoList, _ any) ([]domain.Event, error) {
	if cmd.Title == "" {
		return nil, domain.NewUserError("title is required to create a todo list", "", nil)
	}
	return []domain.Event{TodoListCreated{ListID: t.ID, Title: cmd.Title}}, nil
}

func (t *TodoList) HandleUpdate(cmd UpdateTodoList, _ any) ([]domain.Event, error) {
	var events []domain.Event

	if cmd.AddItem != nil {
		if cmd.AddItem.Title == "" {
			return nil, domain.NewUserError("item title is required", "", nil)
		}
		events = append(events, ItemAdded{ItemID: cmd.AddItem.ItemID, Title: cmd.AddItem.Title})
	}

	if cmd.CompleteItem != "" {
		if _, ok := t.Items[cmd.CompleteItem]; !ok {
			return nil, domain.NewUserError("item not found", "", map[string]any{"itemId": cmd.CompleteItem})
		}
		events = append(events, ItemCompleted{ItemID: cmd.CompleteItem})
	}

	if cmd.RemoveItem != "" {
		if _, ok := t.Items[cmd.RemoveItem]; !ok {
			return nil, domain.NewUserError("item not found", "", map[string]any{"itemId": cmd.RemoveItem})
		}
		events = append(events, ItemRemoved{ItemID: cmd.RemoveItem})
	}

	return events, nil
}
