package portfolio

// DefaultEntries is the table written on first start when no portfolio file exists.
func DefaultEntries() []Entry {
	return []Entry{
		{TechStack: "React, Node.js, MongoDB", Link: "https://example.com/react-portfolio"},
		{TechStack: "Angular,.NET, SQL Server", Link: "https://example.com/angular-portfolio"},
		{TechStack: "Vue.js, Ruby on Rails, PostgreSQL", Link: "https://example.com/vue-portfolio"},
		{TechStack: "Python, Django, MySQL", Link: "https://example.com/python-portfolio"},
		{TechStack: "Java, Spring Boot, Oracle", Link: "https://example.com/java-portfolio"},
		{TechStack: "Flutter, Firebase, GraphQL", Link: "https://example.com/flutter-portfolio"},
		{TechStack: "WordPress, PHP, MySQL", Link: "https://example.com/wordpress-portfolio"},
		{TechStack: "Magento, PHP, MySQL", Link: "https://example.com/magento-portfolio"},
		{TechStack: "React Native, Node.js, MongoDB", Link: "https://example.com/react-native-portfolio"},
		{TechStack: "iOS, Swift, Core Data", Link: "https://example.com/ios-portfolio"},
		{TechStack: "Android, Java, Room Persistence", Link: "https://example.com/android-portfolio"},
		{TechStack: "Kotlin, Android, Firebase", Link: "https://example.com/kotlin-android-portfolio"},
		{TechStack: "Android TV, Kotlin, Android NDK", Link: "https://example.com/android-tv-portfolio"},
		{TechStack: "iOS, Swift, ARKit", Link: "https://example.com/ios-ar-portfolio"},
		{TechStack: "Cross-platform, Xamarin, Azure", Link: "https://example.com/xamarin-portfolio"},
		{TechStack: "Backend, Kotlin, Spring Boot", Link: "https://example.com/kotlin-backend-portfolio"},
		{TechStack: "Frontend, TypeScript, Angular", Link: "https://example.com/typescript-frontend-portfolio"},
		{TechStack: "Full-stack, JavaScript, Express.js", Link: "https://example.com/full-stack-js-portfolio"},
		{TechStack: "Machine Learning, Python, TensorFlow", Link: "https://example.com/ml-python-portfolio"},
		{TechStack: "DevOps, Jenkins, Docker", Link: "https://example.com/devops-portfolio"},
	}
}
