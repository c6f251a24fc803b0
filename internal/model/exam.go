package model

import "encoding/json"

type University string

const (
	UniversityLIU University = "LIU"
	UniversityKTH University = "KTH"
	UniversityCTH University = "CTH"
	UniversityLTH University = "LTH"
)

var ValidUniversities = []University{UniversityLIU, UniversityKTH, UniversityCTH, UniversityLTH}

func (u University) Valid() bool {
	for _, v := range ValidUniversities {
		if v == u {
			return true
		}
	}
	return false
}

type Exam struct {
	ID          int64           `json:"id"`
	CourseCode  string          `json:"course_code"`
	ExamDate    string          `json:"exam_date"`
	PDFURL      string          `json:"pdf_url"`
	ExamName    string          `json:"exam_name"`
	HasSolution bool            `json:"has_solution"`
	Statistics  json.RawMessage `json:"statistics,omitempty"`
	PassRate    *float64        `json:"pass_rate,omitempty"`
}

type ExamList struct {
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	Exams      []Exam `json:"exams"`
}

type ExamStat struct {
	ExamDate      string
	Statistics    json.RawMessage
	PassRate      *float64
	CourseNameSwe string
}

type ExamSummary struct {
	ID         int64  `json:"id"`
	CourseCode string `json:"course_code"`
	ExamDate   string `json:"exam_date"`
	PDFURL     string `json:"pdf_url"`
}

type Solution struct {
	ID     int64  `json:"id"`
	ExamID int64  `json:"exam_id"`
	PDFURL string `json:"pdf_url"`
}

type ExamDetail struct {
	Exam     ExamSummary `json:"exam"`
	Solution *Solution   `json:"solution"`
}
