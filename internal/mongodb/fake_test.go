package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type call struct {
	database string
	command  bson.D
}

type reply struct {
	doc interface{}
	err error
}

// fakeCommander replies per command name, in order.
type fakeCommander struct {
	t       *testing.T
	calls   []call
	replies map[string][]reply
}

func newFakeCommander(t *testing.T) *fakeCommander {
	return &fakeCommander{t: t, replies: map[string][]reply{}}
}

func (f *fakeCommander) on(cmd string, doc interface{}, err error) *fakeCommander {
	f.replies[cmd] = append(f.replies[cmd], reply{doc: doc, err: err})
	return f
}

func (f *fakeCommander) RunCommand(_ context.Context, database string, command bson.D) (bson.Raw, error) {
	f.calls = append(f.calls, call{database: database, command: command})

	name := command[0].Key

	queue := f.replies[name]
	require.NotEmptyf(f.t, queue, "unexpected command %s", name)

	next := queue[0]
	f.replies[name] = queue[1:]

	if next.err != nil {
		return nil, next.err
	}

	raw, err := bson.Marshal(next.doc)
	require.NoError(f.t, err)

	return raw, nil
}

func (f *fakeCommander) commandNames() []string {
	names := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		names = append(names, c.command[0].Key)
	}

	return names
}

func ok() bson.M {
	return bson.M{"ok": 1}
}

func usersReply(users ...bson.M) bson.M {
	list := bson.A{}
	for _, u := range users {
		list = append(list, u)
	}

	return bson.M{"ok": 1.0, "users": list}
}
