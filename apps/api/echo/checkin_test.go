package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/checkin"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/tests"
)

func pinTime(t *testing.T, at time.Time) {
	t.Helper()
	checkin.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { checkin.NowFunc = time.Now })
}

func Test_checkinApi_taskCreate(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.StudentRoles, true)
	crs := testutil.CreateCourse(t, app.courseSvc, "Algorithms", teacher)
	testutil.Enroll(t, app.courseSvc, crs, student, teacher)

	now := time.Now().UTC()
	newTask := checkin.NewTask{
		ParentCourseID: crs.ID,
		Name:           "Lecture 1",
		StartsAt:       now.Add(time.Hour),
		EndsAt:         now.Add(2 * time.Hour),
		Modality:       checkin.ModalityCode,
	}

	tests := []httpTest{
		{name: "student cannot create", token: getToken(t, student), body: marchallObj(t, newTask),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: checkin.ErrNotAllowed.Error()})},
		{name: "missing fields", token: getToken(t, teacher), body: marchallObj(t, checkin.NewTask{Name: "x", Modality: checkin.ModalityCode}),
			wantCode: http.StatusBadRequest},
		{name: "teacher creates", token: getToken(t, teacher), body: marchallObj(t, newTask),
			wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				return
			}
			var task checkin.Task
			if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
				t.Fatalf("json.Unmarshal(): %v", err)
			}
			if task.Status != checkin.StatusCreated {
				t.Errorf("status = %v; want %v", task.Status, checkin.StatusCreated)
			}
			if task.ParentCourseID.String != crs.ID {
				t.Errorf("parent course = %v; want %v", task.ParentCourseID.String, crs.ID)
			}
		})
	}
}

func Test_checkinApi_codeFlow(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.StudentRoles, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other1", "other@test.cd", "", user.StudentRoles, true)
	stranger := testutil.CreateUser(t, app.usrRepo, "Stranger", "stranger", "stranger@test.cd", "", user.StudentRoles, true)

	crs := testutil.CreateCourse(t, app.courseSvc, "Algorithms", teacher)
	testutil.Enroll(t, app.courseSvc, crs, student, teacher)
	testutil.Enroll(t, app.courseSvc, crs, other, teacher)

	now := time.Now().UTC()
	pinTime(t, now)

	task := testutil.CreateTask(t, app.checkinSvc, crs, "Lecture 1",
		now.Add(-10*time.Minute), now.Add(50*time.Minute), checkin.ModalityCode, checkin.VerifyParams{}, teacher)

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	taskPath := "/v1/tasks/" + task.ID

	t.Run("activate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/activate", teacherToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("student cannot read the code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath+"/code", studentToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: checkin.ErrNotAllowed.Error()})}
		checkCodeAndData(t, tt, rec)
	})

	var code string
	t.Run("manager gets the code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath+"/code", teacherToken)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp CodeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(resp.Code) != 8 {
			t.Errorf("len(code) = %d; want 8", len(resp.Code))
		}
		code = resp.Code
	})

	t.Run("secret is hidden from students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath, studentToken)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var task checkin.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if task.Params.Secret != "" {
			t.Error("secret leaked to a student")
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/checkin", studentToken,
			marchallObj(t, checkin.CheckIn{Code: "LOLNOPE1"}))
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: checkin.ErrVerificationFailed.Error()})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("non-member cannot check in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/checkin", getToken(t, stranger),
			marchallObj(t, checkin.CheckIn{Code: code}))
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: checkin.ErrNotCourseMember.Error()})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("check in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/checkin", studentToken,
			marchallObj(t, checkin.CheckIn{Code: code, Device: "android-x1"}))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var record checkin.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if record.Status != checkin.RecordNormal {
			t.Errorf("status = %v; want %v", record.Status, checkin.RecordNormal)
		}
	})

	t.Run("double check-in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/checkin", studentToken,
			marchallObj(t, checkin.CheckIn{Code: code}))
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: checkin.ErrAlreadyCheckedIn.Error()})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("manager records a student manually", func(t *testing.T) {
		body := marchallObj(t, RecordForRequest{UserID: other.ID, CheckIn: checkin.CheckIn{Code: code}})
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/records", teacherToken, body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var record checkin.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if record.UserID != other.ID {
			t.Errorf("userID = %v; want %v", record.UserID, other.ID)
		}
	})

	t.Run("stats are manager-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath+"/stats", studentToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath+"/stats", teacherToken)
		app.server.ServeHTTP(rec, req)

		// teacher never checked in and counts as a synthetic absence
		tt := httpTest{wantCode: http.StatusOK,
			wantData: marchallObj(t, map[checkin.RecordStatus]int{
				checkin.RecordNormal: 2,
				checkin.RecordLate:   0,
				checkin.RecordAbsent: 1,
				checkin.RecordLeave:  0,
			})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("records listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, taskPath+"/records", teacherToken)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var records []checkin.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(records) != 2 {
			t.Errorf("len(records) = %d; want 2", len(records))
		}
	})

	t.Run("override to leave", func(t *testing.T) {
		records, err := app.checkinSvc.TaskRecords(task.ID, teacher)
		if err != nil {
			t.Fatalf("TaskRecords(): %v", err)
		}

		req, rec := newAuthRequest(http.MethodPut, "/v1/records/"+records[0].ID, teacherToken,
			marchallObj(t, OverrideRecordRequest{Status: checkin.RecordLeave}))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var record checkin.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if record.Status != checkin.RecordLeave {
			t.Errorf("status = %v; want %v", record.Status, checkin.RecordLeave)
		}
	})

	t.Run("override with bogus status", func(t *testing.T) {
		records, err := app.checkinSvc.TaskRecords(task.ID, teacher)
		if err != nil {
			t.Fatalf("TaskRecords(): %v", err)
		}

		req, rec := newAuthRequest(http.MethodPut, "/v1/records/"+records[0].ID, teacherToken,
			[]byte(`{"status":"lol"}`))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_checkinApi_taskLifecycle(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.StudentRoles, true)
	crs := testutil.CreateCourse(t, app.courseSvc, "Algorithms", teacher)
	testutil.Enroll(t, app.courseSvc, crs, student, teacher)

	now := time.Now().UTC()
	pinTime(t, now)

	task := testutil.CreateTask(t, app.checkinSvc, crs, "Lecture 2",
		now.Add(-10*time.Minute), now.Add(50*time.Minute), checkin.ModalityManual, checkin.VerifyParams{}, teacher)

	teacherToken := getToken(t, teacher)
	taskPath := "/v1/tasks/" + task.ID

	t.Run("cancel", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/cancel", teacherToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("canceled task rejects submissions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/checkin", getToken(t, student),
			marchallObj(t, checkin.CheckIn{}))
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: checkin.ErrTaskNotOpen.Error()})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("canceled is terminal", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, taskPath+"/activate", teacherToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: checkin.ErrInvalidTransition.Error()})}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_checkinApi_courseTasks(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.StudentRoles, true)
	stranger := testutil.CreateUser(t, app.usrRepo, "Stranger", "stranger", "stranger@test.cd", "", user.StudentRoles, true)

	crs := testutil.CreateCourse(t, app.courseSvc, "Algorithms", teacher)
	testutil.Enroll(t, app.courseSvc, crs, student, teacher)

	now := time.Now().UTC()
	t1 := testutil.CreateTask(t, app.checkinSvc, crs, "Lecture 1",
		now.Add(time.Hour), now.Add(2*time.Hour), checkin.ModalityManual, checkin.VerifyParams{}, teacher)
	t2 := testutil.CreateTask(t, app.checkinSvc, crs, "Lecture 2",
		now.Add(24*time.Hour), now.Add(25*time.Hour), checkin.ModalityCode,
		checkin.VerifyParams{Secret: "SYG8XWUF"}, teacher)
	t3 := testutil.CreateTask(t, app.checkinSvc, crs, "Lecture 3",
		now.Add(48*time.Hour), now.Add(49*time.Hour), checkin.ModalityWifi,
		checkin.VerifyParams{SSID: "campus", BSSID: "aa:bb:cc:dd:ee:ff"}, teacher)
	taskIDs := map[string]bool{t1.ID: true, t2.ID: true, t3.ID: true}

	coursePath := "/v1/courses/" + crs.ID + "/tasks"

	t.Run("member lists tasks", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, coursePath, getToken(t, student))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var tasks []checkin.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(tasks) != 3 {
			t.Errorf("len(tasks) = %d; want 3", len(tasks))
		}
		for _, task := range tasks {
			if !taskIDs[task.ID] {
				t.Errorf("unexpected task %v", task.ID)
			}
			// verification material is manager-only
			if task.Params.Secret != "" {
				t.Errorf("task %v leaks the check-in secret", task.ID)
			}
			if task.Params.BSSID != "" {
				t.Errorf("task %v leaks the expected BSSID", task.ID)
			}
		}
	})

	t.Run("manager lists tasks", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, coursePath, getToken(t, teacher))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var tasks []checkin.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		secrets := make(map[string]checkin.VerifyParams, len(tasks))
		for _, task := range tasks {
			secrets[task.ID] = task.Params
		}
		if secrets[t2.ID].Secret != "SYG8XWUF" {
			t.Errorf("secret = %q; want it visible to the manager", secrets[t2.ID].Secret)
		}
		if secrets[t3.ID].BSSID != "aa:bb:cc:dd:ee:ff" {
			t.Errorf("bssid = %q; want it visible to the manager", secrets[t3.ID].BSSID)
		}
	})

	t.Run("non-member", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, coursePath, getToken(t, stranger))
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})
}
