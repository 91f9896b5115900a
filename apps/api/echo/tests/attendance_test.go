package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/schedule"
	testutil "github.com/trezcool/mahudhurio/tests"
)

// enrolled books Physics on saturday 09:00 and enrolls student 1001 with 4 paid sessions.
func enrolled(t *testing.T, env *testutil.Env) schedule.Group {
	testutil.SetNow(t, testutil.Date(2026, 10, 15, "12:00"))
	teacher := env.CreateTeacher(t, "Mr. Salim")
	room := env.CreateRoom(t, "Room A", 20)
	physics := env.CreateGroup(t, "Physics", teacher.ID, room.ID, "saturday", "09:00", 90)
	amina := env.CreateStudent(t, "Amina")
	env.Enroll(t, amina.ID, physics.ID)
	env.Pay(t, amina.ID, physics.ID, 4, 400)
	return physics
}

func TestScan(t *testing.T) {
	server, env := setup(t)
	physics := enrolled(t, env)
	token := getToken(t, RoleSupervisor)

	testutil.SetNow(t, testutil.Date(2026, 10, 17, "09:05"))

	rec := do(server, http.MethodPost, "/v1/scan", token, []byte(`{"code": "1001"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res attendance.ScanResult
	unmarshal(t, rec, &res)
	assert.True(t, res.Allowed)
	assert.Equal(t, attendance.StatusPresent, res.Status)
	assert.Equal(t, attendance.ColorGreen, res.ColorCode)
	assert.Equal(t, 5, res.MinutesLate)
	assert.Equal(t, "Amina", res.StudentName)
	assert.Equal(t, physics.Name, res.GroupName)

	// rescanning is not an error
	rec = do(server, http.MethodPost, "/v1/scan", token, []byte(`{"code": "1001"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &res)
	assert.False(t, res.Allowed)
	assert.Equal(t, attendance.StatusAlreadyRecorded, res.Status)

	rec = do(server, http.MethodPost, "/v1/scan", token, []byte(`{"code": "9999"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &res)
	assert.Equal(t, attendance.StatusBlockedOther, res.Status)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"code": "this field is required"}`),
	}, do(server, http.MethodPost, "/v1/scan", token, []byte(`{"code": ""}`)))
}

func TestTeacherCheckIn(t *testing.T) {
	server, env := setup(t)
	physics := enrolled(t, env)
	token := getToken(t, RoleSupervisor)

	testutil.SetNow(t, testutil.Date(2026, 10, 17, "08:55"))

	rec := do(server, http.MethodPost, "/v1/sessions/checkin", token, marchallObj(t, attendance.NewCheckIn{GroupID: physics.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess attendance.Session
	unmarshal(t, rec, &sess)
	assert.True(t, sess.TeacherCheckedIn)
	assert.Equal(t, physics.ID, sess.GroupID)

	rec = do(server, http.MethodPost, "/v1/sessions/checkin", token, []byte(`{}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"group_id": "this field is required"}`),
	}, rec)
}
