package lang

import (
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb", ".rake", ".gemspec", ".ru"},
		Filenames:  []string{"Gemfile", "Rakefile", "Guardfile", "Capfile", "Vagrantfile"},
		lang:       ruby.GetLanguage(),
	}
}
