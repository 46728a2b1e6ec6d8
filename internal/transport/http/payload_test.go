package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateTextFieldPriority(t *testing.T) {
	// "message" wins over later variants when both are present
	text, sender, err := LocateText([]byte(`{"body":"second choice","message":"first choice"}`))
	require.NoError(t, err)
	assert.Equal(t, "first choice", text)
	assert.Equal(t, "StyleSeat", sender)

	for _, field := range []string{"message", "messag", "msg", "text", "content", "sms", "body"} {
		text, _, err := LocateText([]byte(`{"` + field + `":"hello there"}`))
		require.NoError(t, err, field)
		assert.Equal(t, "hello there", text, field)
	}
}

func TestLocateTextSenderOverride(t *testing.T) {
	_, sender, err := LocateText([]byte(`{"message":"hello there","sender":"Booksy"}`))
	require.NoError(t, err)
	assert.Equal(t, "Booksy", sender)
}

func TestLocateTextFallbackToLongString(t *testing.T) {
	text, _, err := LocateText([]byte(`{"weird_key":"You just got booked! Sam at 10:00 AM","n":3,"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "You just got booked! Sam at 10:00 AM", text)

	// short strings and the sender field never win the fallback
	_, _, err = LocateText([]byte(`{"flag":"yes","sender":"a-very-long-sender-name"}`))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestLocateTextPlainBody(t *testing.T) {
	text, sender, err := LocateText([]byte("Jane Smith scheduled a Haircut at 2 PM"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith scheduled a Haircut at 2 PM", text)
	assert.Equal(t, "StyleSeat", sender)

	// a bare JSON string works too
	text, _, err = LocateText([]byte(`"quoted message body"`))
	require.NoError(t, err)
	assert.Equal(t, "quoted message body", text)
}

func TestLocateTextCollapsesEscapes(t *testing.T) {
	text, _, err := LocateText([]byte(`{"message":"You just got booked\\! Sam at 10:00 AM"}`))
	require.NoError(t, err)
	assert.Equal(t, "You just got booked! Sam at 10:00 AM", text)
}

func TestLocateTextEmpty(t *testing.T) {
	for _, body := range [][]byte{nil, []byte(""), []byte("   "), []byte(`{}`), []byte(`{"n":42}`)} {
		_, _, err := LocateText(body)
		assert.ErrorIs(t, err, ErrNoText)
	}
}
