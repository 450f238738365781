package columnmap

import (
	"github.com/stemsi/exstem-ingest/internal/corrector"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// headerAliases are known header spellings per role, Turkish and English.
// They are corrected once at init so comparisons run on folded text.
var headerAliases = map[model.FieldRole][]string{
	model.RoleStudentNumber: {
		"Öğrenci No", "Öğrenci Numarası", "Okul No", "Okul Numarası", "Numara", "No",
		"Student Number", "Student No", "Student ID", "School Number",
	},
	model.RoleNationalID: {
		"TC Kimlik No", "TC No", "TCKN", "Kimlik No", "TC Kimlik", "T.C. Kimlik Numarası",
		"National ID", "Citizen ID", "Identity Number",
	},
	model.RoleFullName: {
		"Ad Soyad", "Adı Soyadı", "İsim", "İsim Soyisim", "Öğrenci Adı", "Ad",
		"Full Name", "Name", "Student Name",
	},
	model.RoleClassName: {
		"Sınıf", "Şube", "Sınıf Şube", "Sınıf/Şube",
		"Class", "Class Name", "Section",
	},
	model.RoleBooklet: {
		"Kitapçık", "Kitapçık Türü", "Kitapçık Tipi", "Grup",
		"Booklet", "Booklet Type", "Form",
	},
	model.RoleAnswers: {
		"Cevaplar", "Cevap", "Yanıtlar", "Öğrenci Cevapları",
		"Answers", "Responses", "Answer String",
	},
	model.RoleIgnore: {
		"Sıra", "Sıra No", "Puan", "Net", "Doğru", "Yanlış", "Boş", "Tarih",
		"Score", "Date", "Row",
	},
}

var correctedAliases = func() map[model.FieldRole][]string {
	out := make(map[model.FieldRole][]string, len(headerAliases))
	for role, list := range headerAliases {
		folded := make([]string, 0, len(list))
		for _, a := range list {
			folded = append(folded, corrector.Correct(a))
		}
		out[role] = folded
	}
	return out
}()

// headerScore is the best similarity between a corrected header and the
// role's aliases.
func headerScore(role model.FieldRole, header string) float64 {
	if header == "" {
		return 0
	}
	best := 0.0
	for _, alias := range correctedAliases[role] {
		if s := corrector.Ratio(header, alias); s > best {
			best = s
		}
	}
	return best
}

// headerLikeScore is the alias similarity at which a lone cell is read as a
// column title.
const headerLikeScore = 0.9

// LooksLikeHeader reports whether cell is a known header spelling for any
// role, after correction.
func LooksLikeHeader(cell string) bool {
	c := corrector.Correct(cell)
	if c == "" {
		return false
	}
	for role := range correctedAliases {
		if headerScore(role, c) >= headerLikeScore {
			return true
		}
	}
	return false
}
